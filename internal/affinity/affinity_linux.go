//go:build linux

package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"arbitrage-engine/pkg/utils"
)

// PinCurrentThread locks the calling goroutine to its current OS thread
// and restricts that thread to core. It must be called from the
// goroutine that will run the hot loop, since runtime.LockOSThread only
// affects the calling goroutine. Logs and returns an error on failure
// rather than panicking — a failed pin degrades performance, it does
// not break correctness.
func PinCurrentThread(core int, name string) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: pin %s thread to core %d: %w", name, core, err)
	}

	utils.L().Info("thread pinned",
		utils.String("component", name),
		utils.Int("core", core),
	)
	return nil
}

// PinStrategyThread pins the calling goroutine to assignment.StrategyCore.
func PinStrategyThread(assignment Assignment) error {
	return PinCurrentThread(assignment.StrategyCore, "strategy")
}

// PinVenueThread pins the calling goroutine to the venue core assigned
// to workerID.
func PinVenueThread(assignment Assignment, workerID int) error {
	return PinCurrentThread(assignment.VenueCore(workerID), fmt.Sprintf("venue-%d", workerID))
}

// AvailableCores returns the number of CPUs the process may use.
func AvailableCores() int {
	return runtime.NumCPU()
}
