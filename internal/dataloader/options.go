package dataloader

type options struct {
	name     string
	maxBatch int
	maxSpan  int
}

// Option configures a Loader.
type Option func(*options)

// WithName sets the name reported in loader events.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithMaxBatch limits the number of keys passed to one fetch call. A window
// with more keys is split into several concurrent fetches. 0 means unlimited.
func WithMaxBatch(n int) Option { return func(o *options) { o.maxBatch = n } }

// WithMaxSpan limits the length of one ranged read issued by a range loader.
// Offsets of a group that are further apart are read by separate calls.
// 0 means unlimited: a group is always read from its lowest to its highest
// requested offset.
func WithMaxSpan(n int) Option { return func(o *options) { o.maxSpan = n } }

func buildOptions(opts []Option) options {
	o := options{name: "loader"}
	for _, f := range opts {
		f(&o)
	}
	if o.maxBatch < 0 {
		o.maxBatch = 0
	}
	if o.maxSpan < 0 {
		o.maxSpan = 0
	}
	return o
}
