package tree

import "go.uber.org/zap"

// Options configures a Tree at Open time. Unlike the teacher's
// process-wide settings.GetSettings() singleton, this is scoped to a
// single Tree instance: an embeddable storage engine may be opened more
// than once in the same process (tests routinely do), and a global
// singleton would make the second Open silently share state with the
// first.
type Options struct {
	// Logger receives structured log lines for Open, Set, page
	// allocation, and the split cascade. Defaults to a no-op logger.
	Logger *zap.SugaredLogger

	// Fsync, when true, calls File.Sync() on the underlying *os.File
	// after every batch of page writes a Set finalizes, in addition to
	// the host write-primitive invocation the spec requires
	// unconditionally. Off by default, matching the "best-effort sync"
	// contract: no operation depends on it for correctness.
	Fsync bool

	// InstanceID tags every log line this Tree emits, so that multiple
	// Tree handles opened in one process can be told apart. Defaults to
	// a freshly generated UUID.
	InstanceID string
}

// Option mutates an Options during Open.
type Option func(*Options)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithFsync turns on an explicit File.Sync() after each Set's page writes.
func WithFsync(enabled bool) Option {
	return func(o *Options) { o.Fsync = enabled }
}

// WithInstanceID overrides the generated correlation ID.
func WithInstanceID(id string) Option {
	return func(o *Options) { o.InstanceID = id }
}

func defaultOptions() Options {
	return Options{
		Logger: zap.NewNop().Sugar(),
		Fsync:  false,
	}
}
