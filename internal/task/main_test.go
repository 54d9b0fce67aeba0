package task

import (
	"testing"

	"go.uber.org/goleak"
)

// The controller derives per-call contexts and waits on a rate limiter; make
// sure no run leaves a goroutine behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
