package engine

import (
	"math"
	"time"
)

// maxStepPerUpdate caps the Chebyshev displacement of a single claimed
// move: MoveSpeed with a generous multiplier, so honest clients on bad
// networks don't trip it.
const maxStepPerUpdate = 425

// dashStepMultiplier loosens the cap while a dash is active.
const dashStepMultiplier = 2

// Implausible reports whether a claimed move is physically impossible.
// The cap is per accepted update; elapsed is not factored into the
// reference policy but stays in the signature so a distance/time ratio
// can replace it without touching call sites.
func Implausible(fromX, fromY, toX, toY float64, elapsed time.Duration, dash bool) bool {
	_ = elapsed
	limit := float64(maxStepPerUpdate)
	if dash {
		limit *= dashStepMultiplier
	}
	return math.Abs(toX-fromX) > limit || math.Abs(toY-fromY) > limit
}
