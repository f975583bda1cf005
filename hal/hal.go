package hal

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// Time provides a base tick stream.
//
// One tick is one millisecond on every platform; the kernel converts sleep
// durations with the same unit.
type Time interface {
	Ticks() <-chan uint64
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	Time() Time
}
