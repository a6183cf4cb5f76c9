package migrate_test

import (
	"testing"

	"go.uber.org/goleak"
)

// Workers and reconciliation calls must all have returned by the time Run
// does.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
