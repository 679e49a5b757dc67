package gtest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const timeFactorEnv = "GLIGHT_TEST_TIME_FACTOR"

// TimeFactor is a multiplier for test timeouts,
// controlled by the GLIGHT_TEST_TIME_FACTOR environment variable.
//
// A flat 100ms timeout usually suffices on a workstation
// but not always on a contended CI machine;
// setting GLIGHT_TEST_TIME_FACTOR=3 triples every timeout.
var TimeFactor ScaledDuration = 1

func init() {
	f := os.Getenv(timeFactorEnv)
	if f == "" {
		return
	}

	n, err := strconv.Atoi(f)
	if err != nil {
		panic(fmt.Errorf("failed to parse %s (%q) into an integer: %w", timeFactorEnv, f, err))
	}
	if n <= 0 {
		panic(fmt.Errorf("%s must be positive; got %d", timeFactorEnv, n))
	}

	TimeFactor = ScaledDuration(n)
}

type ScaledDuration time.Duration

// ScaleMs returns ms in milliseconds, multiplied by [TimeFactor].
//
// Helpers take a ScaledDuration so that callers cannot pass
// literal timeouts that would be flaky on slower machines.
func ScaleMs(ms int64) ScaledDuration {
	return TimeFactor * ScaledDuration(ms) * ScaledDuration(time.Millisecond)
}

func slowMachineHint() string {
	return fmt.Sprintf(
		"if this is flaky on only one machine, set %s to a value greater than the current value of %d",
		timeFactorEnv, TimeFactor,
	)
}
