package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) StartRun(_ *Run) error { return nil }
func (n *NoopRecorder) RecordWindow(_ *WindowEvent) error { return nil }
func (n *NoopRecorder) FinishRun(_ string, _ *RunResult) error { return nil }
func (n *NoopRecorder) Close() error { return nil }
