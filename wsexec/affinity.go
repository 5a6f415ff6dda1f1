// File: wsexec/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wsexec

import (
	"runtime"

	"github.com/momentics/wscore/affinity"
)

// PinCurrentGoroutine locks the calling goroutine to its OS thread and pins
// that thread to CPU workerID mod runtime.NumCPU(), best-effort. The
// numaNode offset is a multiple of runtime.NumCPU() and cancels out in the
// modulo, so the CPU chosen does not depend on numaNode. Failure is not
// fatal: an unpinned worker still runs correctly.
func PinCurrentGoroutine(numaNode, workerID int) {
	runtime.LockOSThread()
	cpu := workerID
	if numaNode > 0 {
		cpu += numaNode * runtime.NumCPU()
	}
	_ = affinity.SetAffinity(cpu % runtime.NumCPU())
}
