package kernel

// PanicInfo contains details about a recovered task panic.
type PanicInfo struct {
	PID   ProcessID
	TID   ThreadID
	Value any
	Stack []byte
}
