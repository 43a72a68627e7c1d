package dynamodb

import (
	"errors"
	"time"
)

func errorsAs(err error, target any) bool {
	return errors.As(err, target)
}

// Timestamps are stored as epoch milliseconds, matching the numeric
// precision the editor works in.
func fromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
