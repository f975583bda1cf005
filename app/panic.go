package app

import (
	"fmt"
	"strings"

	"bruna/hal"
	"bruna/kernel"
)

// panicHandler logs a contained task panic with its stack. The kernel has
// already terminated the offending thread.
func panicHandler(l hal.Logger) func(kernel.PanicInfo) {
	return func(info kernel.PanicInfo) {
		if l == nil {
			return
		}
		l.WriteLineString(fmt.Sprintf("bruna panic: pid=%d tid=%d panic=%v", info.PID, info.TID, info.Value))
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line == "" {
				continue
			}
			l.WriteLineString("  " + line)
		}
	}
}
