package types

import (
	"fmt"
	"strconv"
	"strings"
)

const ErrInvalidCapacity = SentinelError("capacity not within range [0,1]")

// Capacity is the fraction of a provider's daily send quota that a single
// dispatch run may consume.
type Capacity struct {
	cap float64
}

func NewCapacity(cap float64) (Capacity, error) {
	if cap < 0.0 || cap > 1.0 {
		return Capacity{}, fmt.Errorf("%w: %v", ErrInvalidCapacity, cap)
	}
	return Capacity{cap}, nil
}

// ParseCapacity accepts either a fraction ("0.75") or a percentage ("75%").
func ParseCapacity(s string) (Capacity, error) {
	s = strings.TrimSpace(s)
	divisor := 1.0

	if pct, ok := strings.CutSuffix(s, "%"); ok {
		s = pct
		divisor = 100.0
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Capacity{}, fmt.Errorf("%w: %q", ErrInvalidCapacity, s)
	}
	return NewCapacity(value / divisor)
}

func (c Capacity) Value() float64 {
	return c.cap
}

func (c Capacity) Equal(other Capacity) bool {
	return c.cap == other.cap
}

func (c Capacity) String() string {
	return fmt.Sprintf("%.2f%%", c.cap*100.0)
}

func (c Capacity) MaxAvailable(totalUnits int64) int64 {
	return int64(float64(totalUnits) * c.cap)
}
