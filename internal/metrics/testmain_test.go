package ikemetrics_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain runs all tests in the ikemetrics_test package and checks for
// goroutine leaks after all tests complete.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
