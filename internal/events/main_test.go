package events

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutine leaks past the package's tests, since
// Manager.Publish and Subscribe's initial delivery both fan out into
// background goroutines (NOTIFY delivery, history recording) that must not
// outlive the test that triggered them.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
