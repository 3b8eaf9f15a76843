package interfaces

// RunLogger carries a pipeline stage's progress onto its run record and
// the event stream. Implementations persist entries and publish events;
// Step checkpoints are throttled by the implementation.
type RunLogger interface {
	Debug(msg string, data map[string]interface{})
	Info(msg string, data map[string]interface{})
	Warn(msg string, data map[string]interface{})
	Error(msg string, data map[string]interface{})

	// Step records the current step name and overall progress in [0,1]
	Step(step string, progress float64)
}
