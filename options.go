package bigfile

import (
	"io"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultConcurrency is the number of parallel transfers used by Pull and Push.
const DefaultConcurrency = 4

// Options configures filters and engines.
type Options struct {
	Concurrency int
	Output      io.Writer
	Logger      *zap.Logger
	Fs          afero.Fs
}

// Option is a functional option for configuring Open, OpenStore and NewFilter.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Concurrency: DefaultConcurrency,
		Output:      os.Stdout,
		Logger:      zap.NewNop(),
		Fs:          afero.NewOsFs(),
	}
}

func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithConcurrency sets the number of parallel transfers for push/pull.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithOutput sets where progress lines are printed.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		if w != nil {
			o.Output = w
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithFs sets the filesystem holding the cache and the working copy.
func WithFs(fs afero.Fs) Option {
	return func(o *Options) {
		if fs != nil {
			o.Fs = fs
		}
	}
}
