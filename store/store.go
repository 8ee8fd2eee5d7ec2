// Package store keeps shape-encoded values in a byte Provider.
//
// Every value is encoded with a codec.Codec (shape by default) and framed in a
// wire entry (magic, version, length-prefixed payload) before it is handed to
// the provider. Entries that fail validation on read are deleted and reported
// as misses.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/shapecodec"
	c "github.com/unkn0wn-root/shapecodec/codec"
	"github.com/unkn0wn-root/shapecodec/internal/wire"
	pr "github.com/unkn0wn-root/shapecodec/provider"
)

const keyPrefix = "shape"

// ErrEntryTooLarge is returned by Put when the framed entry exceeds MaxEntrySize.
var ErrEntryTooLarge = errors.New("store: entry exceeds MaxEntrySize")

// SetCostFunc computes the provider cost of an entry.
type SetCostFunc func(storageKey string, entry []byte) int64

type Options[V any] struct {
	Namespace string      // required
	Provider  pr.Provider // required

	// Codec defaults to codec.NewShape[V] built with Logger.
	Codec c.Codec[V]

	Logger shapecodec.Logger
	Hooks  Hooks

	// DefaultTTL applies when Put is called with ttl == 0. Defaults to 10m.
	DefaultTTL time.Duration

	// MaxEntrySize caps framed entries in bytes, on write and on read. 0 = no cap.
	MaxEntrySize int

	// ComputeSetCost defaults to the entry length.
	ComputeSetCost SetCostFunc

	Disabled bool
}

type Store[V any] struct {
	ns       string
	prefix   string
	provider pr.Provider
	codec    c.Codec[V]
	log      shapecodec.Logger
	hooks    Hooks
	ttl      time.Duration
	maxEntry int
	cost     SetCostFunc
	enabled  bool
}

func New[V any](opts Options[V]) (*Store[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("store: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("store: namespace is required")
	}
	if opts.MaxEntrySize < 0 {
		return nil, fmt.Errorf("store: MaxEntrySize must be >= 0")
	}

	s := &Store[V]{
		ns:       opts.Namespace,
		prefix:   keyPrefix + ":" + opts.Namespace + ":",
		provider: opts.Provider,
		maxEntry: opts.MaxEntrySize,
		enabled:  !opts.Disabled,
	}
	if opts.Logger != nil {
		s.log = opts.Logger
	} else {
		s.log = shapecodec.NopLogger{}
	}
	if opts.Hooks != nil {
		s.hooks = opts.Hooks
	} else {
		s.hooks = NopHooks{}
	}
	if opts.Codec != nil {
		s.codec = opts.Codec
	} else {
		s.codec = c.NewShape[V](shapecodec.Options{Logger: s.log})
	}
	if opts.ComputeSetCost != nil {
		s.cost = opts.ComputeSetCost
	} else {
		s.cost = func(_ string, entry []byte) int64 { return int64(len(entry)) }
	}
	s.ttl = opts.DefaultTTL
	if s.ttl == 0 {
		s.ttl = 10 * time.Minute
	}
	return s, nil
}

func (s *Store[V]) Enabled() bool { return s.enabled }

// StorageKey returns the provider key for key.
func (s *Store[V]) StorageKey(key string) string { return s.prefix + key }

// Get returns (value, true, nil) on hit. Provider errors are returned as-is;
// invalid entries are deleted and reported as a miss.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !s.enabled {
		return zero, false, nil
	}
	k := s.StorageKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		return zero, false, fmt.Errorf("store: get %q: %w", key, err)
	}
	if !ok {
		return zero, false, nil
	}
	if s.maxEntry > 0 && len(raw) > s.maxEntry {
		s.selfHeal(ctx, k, "oversize", nil)
		return zero, false, nil
	}
	payload, err := wire.DecodeEntry(raw)
	if err != nil {
		s.selfHeal(ctx, k, "corrupt", err)
		return zero, false, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		s.selfHeal(ctx, k, "value_decode", err)
		return zero, false, nil
	}
	return v, true, nil
}

// GetMany looks up keys one by one. Missing keys are returned in request order.
func (s *Store[V]) GetMany(ctx context.Context, keys []string) (map[string]V, []string, error) {
	out := make(map[string]V, len(keys))
	var missing []string
	for _, key := range keys {
		if _, seen := out[key]; seen {
			continue
		}
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, key)
			continue
		}
		out[key] = v
	}
	return out, missing, nil
}

// Put encodes value and stores it. ttl == 0 uses the default TTL.
// A write the provider rejects under pressure is not an error.
func (s *Store[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !s.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = s.ttl
	}
	k := s.StorageKey(key)
	payload, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	entry, err := wire.EncodeEntry(payload)
	if err != nil {
		return fmt.Errorf("store: frame %q: %w", key, err)
	}
	if s.maxEntry > 0 && len(entry) > s.maxEntry {
		s.hooks.EntryTooLarge(k, len(entry))
		return fmt.Errorf("%w: %d > %d", ErrEntryTooLarge, len(entry), s.maxEntry)
	}
	ok, err := s.provider.Set(ctx, k, entry, s.cost(k, entry), ttl)
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	if !ok {
		s.hooks.ProviderSetRejected(k)
		s.log.Debug("Put rejected by provider (pressure)", shapecodec.Fields{"key": key})
	}
	return nil
}

func (s *Store[V]) Delete(ctx context.Context, key string) error {
	if !s.enabled {
		return nil
	}
	if err := s.provider.Del(ctx, s.StorageKey(key)); err != nil {
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store[V]) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

func (s *Store[V]) selfHeal(ctx context.Context, storageKey, reason string, cause error) {
	delErr := s.provider.Del(ctx, storageKey)
	s.hooks.SelfHeal(storageKey, reason)
	f := shapecodec.Fields{"ns": s.ns, "key": storageKey, "reason": reason}
	if cause != nil {
		f["err"] = cause
	}
	if delErr != nil {
		f["del_err"] = delErr
	}
	s.log.Warn("self-healed invalid entry", f)
}
