package bplist

import (
	"io"
	"log/slog"
)

// DefaultRecursionMargin is the number of decode steps tolerated beyond the
// declared object count before a document is considered runaway.
const DefaultRecursionMargin = 16

type optionData struct {
	recursionMargin uint64
	logger          *slog.Logger
}

// Option configures Parse and DecodeRoot.
type Option func(*optionData)

// WithRecursionMargin overrides DefaultRecursionMargin.
func WithRecursionMargin(n uint64) Option {
	return func(o *optionData) {
		o.recursionMargin = n
	}
}

// WithLogger sets the logger used to report reserved and unknown object
// tags at debug level. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *optionData) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptionData(opts []Option) optionData {
	o := optionData{
		recursionMargin: DefaultRecursionMargin,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
