package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type hostHAL struct {
	logger *hostLogger
	t      *hostTime
}

// New returns a host HAL that logs to w (os.Stdout if nil).
func New(w io.Writer) HAL {
	if w == nil {
		w = os.Stdout
	}
	return &hostHAL{
		logger: &hostLogger{w: w},
		t:      newHostTime(),
	}
}

func (h *hostHAL) Logger() Logger { return h.logger }
func (h *hostHAL) Time() Time     { return h.t }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
