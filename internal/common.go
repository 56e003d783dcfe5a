package internal

import "time"

// FnModeOptions carries the runtime switches shared by every device client
type FnModeOptions struct {
	Debug bool
	Test  bool

	// zero means the client default
	ProbeTimeout   time.Duration
	CommandTimeout time.Duration
}

type FnModeOption func(*FnModeOptions)

func WithDebug(debug bool) FnModeOption {
	return func(opts *FnModeOptions) {
		opts.Debug = debug
	}
}

func WithTest(test bool) FnModeOption {
	return func(opts *FnModeOptions) {
		opts.Test = test
	}
}

func WithProbeTimeout(timeout time.Duration) FnModeOption {
	return func(opts *FnModeOptions) {
		opts.ProbeTimeout = timeout
	}
}

func WithCommandTimeout(timeout time.Duration) FnModeOption {
	return func(opts *FnModeOptions) {
		opts.CommandTimeout = timeout
	}
}

func NewModeOptions(options ...FnModeOption) *FnModeOptions {
	opts := &FnModeOptions{}
	for _, option := range options {
		option(opts)
	}
	return opts
}
