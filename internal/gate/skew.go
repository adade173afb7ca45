package gate

import (
	"strconv"
	"time"

	"github.com/graxinc/errutil"
)

// DefaultTolerance is how far a claimed timestamp may drift from the
// receiver's clock, in either direction.
const DefaultTolerance = 300 * time.Second

// CheckTimestamp bounds the age of a claimed timestamp (decimal seconds since
// epoch) to within tolerance of now, boundary inclusive. It caps staleness
// only: an exact replay of a still-fresh request passes, since there is no
// seen-set behind it.
func CheckTimestamp(timestamp string, now time.Time, tolerance time.Duration) error {
	if timestamp == "" {
		return errutil.Wrap(ErrMissingTimestamp)
	}

	claimed, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errutil.Wrap(ErrMalformedTimestamp)
	}

	diff := now.Unix() - claimed
	if diff < 0 {
		diff = -diff
	}
	if diff > int64(tolerance/time.Second) {
		return errutil.Wrap(ErrClockSkewExceeded)
	}

	return nil
}
