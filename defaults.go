package shapecodec

// DefaultMaxDepth bounds nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 128

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func (o Options) withDefaults() Options {
	o.MaxDepth = coalesce(o.MaxDepth, DefaultMaxDepth)
	if o.Logger == nil {
		o.Logger = NopLogger{}
	}
	return o
}
