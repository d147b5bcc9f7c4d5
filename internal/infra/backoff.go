package infra

import (
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: backoffBase * 2^retryCount, capped at backoffMax.
// A negative retry count returns backoffBase.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return backoffBase
	}

	// 2^30 seconds is already far beyond the cap.
	if retryCount > 30 {
		return backoffMax
	}

	backoff := backoffBase * time.Duration(1<<retryCount)
	if backoff > backoffMax {
		return backoffMax
	}

	return backoff
}
