package identity

import (
	"strings"

	"go.uber.org/zap"
)

// Option configures the stores and the PolicyAdapter.
type Option func(*options)

type options struct {
	log       *zap.Logger
	normalize func(string) string
}

func newOptions(opts []Option) *options {
	o := &options{
		log:       zap.NewNop(),
		normalize: strings.ToUpper,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRoleNameNormalizer sets how PolicyAdapter turns a role name from a
// casbin rule into the normalized name used for lookups. The default is
// strings.ToUpper.
func WithRoleNameNormalizer(fn func(string) string) Option {
	return func(o *options) {
		if fn != nil {
			o.normalize = fn
		}
	}
}
