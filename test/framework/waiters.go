package framework

import (
	"fmt"
	"time"
)

// WaitFor polls condition until it returns true or timeout elapses.
func WaitFor(timeout time.Duration, condition func() bool, description string) error {
	deadline := time.Now().Add(timeout)
	if condition() {
		return nil
	}
	for time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		if condition() {
			return nil
		}
	}
	return fmt.Errorf("framework: timeout waiting for: %s (timeout: %s)", description, timeout)
}
