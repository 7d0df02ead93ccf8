package testhelper

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// init silences logging in tests unless CO2_TEST_LOG is set.
func init() {
	if testing.Testing() && os.Getenv("CO2_TEST_LOG") == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
}

// EnableLogging turns logging back on for a single test and restores the
// previous level when it ends.
func EnableLogging(t *testing.T, level zerolog.Level) {
	t.Helper()
	previous := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(level)
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(previous)
	})
}
