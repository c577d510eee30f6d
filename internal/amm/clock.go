package amm

import "time"

// Clock supplies the engine's notion of now. The round window is measured
// against a single injected clock so tests can drive the lifecycle
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
