package executor

import "github.com/hanpama/gqlexec/internal/validator"

type Options struct {
	// Sequential disables concurrent resolution of sibling fields and list
	// elements.
	Sequential bool
	// Validation is passed to validator.Validate by ExecuteRequest.
	Validation []validator.Option
}

type Option func(*Options)

// WithConcurrency enables or disables concurrent resolution. It is enabled by
// default.
func WithConcurrency(enabled bool) Option {
	return func(o *Options) { o.Sequential = !enabled }
}

// WithValidation adds validator options applied by ExecuteRequest.
func WithValidation(opts ...validator.Option) Option {
	return func(o *Options) { o.Validation = append(o.Validation, opts...) }
}
