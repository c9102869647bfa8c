package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits the binaries so harnesses can exercise startup
// code without opening sockets or database connections.
const testModeEnv = "STOCKCORE_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the flag once; any value ParseBool accepts ("1",
// "true", "T") enables it, anything else leaves it off.
func detectTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testModeFlag.Store(err == nil && on)
}

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment after it changes.
func RefreshTestMode() {
	detectTestMode()
}
