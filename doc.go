// Package shapecodec is a compact binary encoding for Go values, driven by the
// shape of their types. There is no schema compiler or IDL: the Go type on
// each side is the schema.
//
// Wire format (all integers little-endian):
//
//	bool, uint8            1 byte (bool is 0 or 1)
//	uint32                 4 bytes
//	*T (optional)          0x00 | 0x01 T
//	struct{} (unit)        0x00
//	type X uint32 etc.     same as the underlying type
//	[]T, [N]T, struct, map u32 byte length | elements
//	enum variant           u32 byte length | u8 index | payload
//
// Container prefixes count payload bytes and exclude themselves. They are
// reserved as zero and backpatched when the container closes. Decoding gives
// every container a byte budget; each element must consume at least one byte
// of it, and the container must use it up exactly.
//
// Struct fields are positional: exported fields in declaration order, minus
// those tagged `shape:"-"`. Map entries are ordered by their encoded key bytes.
// Enums are interface types whose closed variant set is declared with
// RegisterEnum; a variant's index is its registration position and must fit
// in one byte.
//
// Signed integers, uint16, uint64, floats, strings and other kinds have no
// shape and fail with ErrUnsupportedType before anything is written.
//
// Types can take over their own encoding by implementing Marshaler and
// Unmarshaler with the Encoder and Decoder primitives.
package shapecodec
