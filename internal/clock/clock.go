package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadFormat = errors.New("unparseable clock string")

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerMonth  = 30 * secondsPerDay
	secondsPerYear   = 365 * secondsPerDay
)

// Clock is a countdown value over whole seconds. It never displays a
// negative value: Countdown floors at zero.
type Clock struct {
	seconds int
}

func New(seconds int) *Clock {
	if seconds < 0 {
		seconds = 0
	}
	return &Clock{seconds: seconds}
}

func (c *Clock) Seconds() int { return c.seconds }

// Countdown subtracts delta seconds, flooring at zero.
func (c *Clock) Countdown(delta int) {
	c.seconds -= delta
	if c.seconds < 0 {
		c.seconds = 0
	}
}

// Reset sets the clock back to the given number of seconds.
func (c *Clock) Reset(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.seconds = seconds
}

// String renders the remaining time as mm:ss, rolling over into h:mm:ss
// and prefixing day/month/year units when they are non-zero.
func (c *Clock) String() string {
	// Each unit is peeled off a running remainder so no second is
	// counted twice; that keeps the output canonical and Parse exact.
	rem := c.seconds
	years := rem / secondsPerYear
	rem %= secondsPerYear
	months := rem / secondsPerMonth
	rem %= secondsPerMonth
	days := rem / secondsPerDay
	rem %= secondsPerDay
	hours := rem / secondsPerHour
	rem %= secondsPerHour
	minutes := rem / secondsPerMinute
	seconds := rem % secondsPerMinute

	var b strings.Builder
	if years > 0 {
		fmt.Fprintf(&b, "%dy ", years)
	}
	if months > 0 {
		fmt.Fprintf(&b, "%dm ", months)
	}
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%d:", hours)
	}
	fmt.Fprintf(&b, "%02d:%02d", minutes, seconds)
	return b.String()
}

// Parse reads a string produced by String back into a Clock. Round-trips
// for any whole-second value.
func Parse(s string) (*Clock, error) {
	total := 0
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, ErrBadFormat
	}

	// Leading unit-suffixed fields: years, months, days.
	for len(fields) > 1 {
		f := fields[0]
		unit := 0
		switch {
		case strings.HasSuffix(f, "y"):
			unit = secondsPerYear
		case strings.HasSuffix(f, "m"):
			unit = secondsPerMonth
		case strings.HasSuffix(f, "d"):
			unit = secondsPerDay
		default:
			return nil, ErrBadFormat
		}
		n, err := strconv.Atoi(f[:len(f)-1])
		if err != nil || n < 0 {
			return nil, ErrBadFormat
		}
		total += n * unit
		fields = fields[1:]
	}

	// Remaining field is [h:]mm:ss.
	parts := strings.Split(fields[0], ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, ErrBadFormat
	}
	if len(parts) == 3 {
		h, err := strconv.Atoi(parts[0])
		if err != nil || h < 0 {
			return nil, ErrBadFormat
		}
		total += h * secondsPerHour
		parts = parts[1:]
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 0 {
		return nil, ErrBadFormat
	}
	sec, err := strconv.Atoi(parts[1])
	if err != nil || sec < 0 {
		return nil, ErrBadFormat
	}
	total += m*secondsPerMinute + sec

	return New(total), nil
}
