package topology

import (
	"time"

	"sdx-topology/pkg/utils"
)

// Clock produces SDX timestamps
type Clock interface {
	Now() string
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current UTC time as an SDX timestamp
func (SystemClock) Now() string {
	return utils.FormatTimestamp(time.Now())
}

// FixedClock always returns the same timestamp
type FixedClock string

// Now returns the fixed timestamp
func (c FixedClock) Now() string {
	return string(c)
}
