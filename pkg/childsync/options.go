package childsync

import "log/slog"

// Option configures caches, coordinators, fetchers and editors.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	keyFunc func() string
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeyFunc overrides local key generation. Defaults to ULIDs.
func WithKeyFunc(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		keyFunc: newLocalKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
