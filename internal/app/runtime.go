package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv, when truthy, makes the binaries return before opening stores
// or binding the bridge port.
const TestModeEnv = "FAMLEDGER_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether TestModeEnv was set when first consulted.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads TestModeEnv after environment changes.
func RefreshTestMode() {
	testMode.on.Store(truthy(os.Getenv(TestModeEnv)))
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
