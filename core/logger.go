package core

// Logger is any service that can log messages.
// args may contain errors, maps of extras and the grader the message is about.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who a logged message is about.
type Person struct {
	ID       string
	Username string
	Email    string
}
