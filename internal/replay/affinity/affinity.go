// Package affinity pins replay worker goroutines to CPUs, grounded on
// golang.org/x/sys/unix's SchedSetaffinity (the same package the
// teacher's internal/bridge uses for low-level syscalls), implementing
// §4.12/§9's "pin calling thread to user CPU set before constructing
// queues, or to the NIC's NUMA node's CPUs if none given; warn
// (non-fatal) on mismatch."
package affinity

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/CESNET/ft-generator/internal/ftlog"
)

// Pin locks the calling OS thread (via runtime.LockOSThread) and sets
// its CPU affinity to cpus. Callers must run this from the goroutine
// that will do the actual work, since Go only lets a goroutine pin its
// own current OS thread.
func Pin(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: set affinity to %v: %w", cpus, err)
	}
	return nil
}

// CPUsForNumaNode reads /sys/devices/system/node/node<N>/cpulist and
// returns the CPUs belonging to NUMA node n. An absent/unreadable file
// (non-NUMA hosts, containers) returns a nil slice, not an error; the
// caller falls back to no pinning and logs a warning.
func CPUsForNumaNode(n int) []int {
	if n < 0 {
		return nil
	}
	data, err := os.ReadFile(fmt.Sprintf("/sys/devices/system/node/node%d/cpulist", n))
	if err != nil {
		return nil
	}
	return parseCPUList(strings.TrimSpace(string(data)))
}

func parseCPUList(s string) []int {
	var cpus []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil {
				continue
			}
			for c := loN; c <= hiN; c++ {
				cpus = append(cpus, c)
			}
		} else {
			if c, err := strconv.Atoi(part); err == nil {
				cpus = append(cpus, c)
			}
		}
	}
	return cpus
}

// PinToNumaNodeOrWarn pins to numaCPUs if non-empty, otherwise logs a
// warning and leaves the thread unpinned (§9's non-fatal mismatch rule).
func PinToNumaNodeOrWarn(log *ftlog.Logger, queue string, numaNode int) {
	cpus := CPUsForNumaNode(numaNode)
	if len(cpus) == 0 {
		log.Warn("queue %s: no CPU set found for NUMA node %d, running unpinned", queue, numaNode)
		return
	}
	if err := Pin(cpus); err != nil {
		log.Warn("queue %s: %v, running unpinned", queue, err)
	}
}
