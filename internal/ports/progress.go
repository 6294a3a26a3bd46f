package ports

// ProgressSink receives transient progress frames during a download.
// Frames overwrite one another; the sink decides how to present them
// (carriage-return rewriting on a terminal, discarded in tests).
type ProgressSink interface {
	Frame(text string)
}

// NopSink discards all frames.
type NopSink struct{}

func (NopSink) Frame(string) {}
