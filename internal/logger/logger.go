package logger

// Logger is the structured logging surface used by every component.
// Components identify themselves so log streams from the frame loop,
// the stage and the telemetry hub stay distinguishable.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}
