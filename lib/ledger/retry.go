package ledger

import (
	"errors"
	"time"
)

// MaxAttempts is the attempt budget for every gateway round trip.
const MaxAttempts = 3

// backoffUnit is the base delay multiplied by 2^attempt between retries.
const backoffUnit = 2000 * time.Millisecond

// ErrNoAttempt is returned when the retry loop exits without having run a single attempt.
var ErrNoAttempt = errors.New("ledger: no attempt was made")

// Retryable reports whether err is worth retrying. Only a remote error signalling an internal failure of the
// gateway (a server-class status) is transient; anything else propagates immediately.
func Retryable(err error) bool {
	var re *RemoteError

	return errors.As(err, &re) && re.Server()
}

// Backoff returns the delay to wait after the given zero-based attempt: 2^attempt * 2s.
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * backoffUnit
}

// Decide is the retry policy as a pure function of (attempt, error): it returns the delay to wait before the
// next attempt and whether that attempt should be made at all. It is kept separate from the sleep mechanism so
// it can be tested without real delays.
func Decide(attempt int, err error) (time.Duration, bool) {
	if attempt >= MaxAttempts-1 || !Retryable(err) {
		return 0, false
	}

	return Backoff(attempt), true
}

// retry runs op up to MaxAttempts times according to Decide, sleeping between attempts via the supplied sleep
// function. It returns the last observed error once the policy gives up.
func retry(sleep func(time.Duration), op func() error) error {
	var lastErr error

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}

		delay, again := Decide(attempt, lastErr)
		if !again {
			return lastErr
		}

		sleep(delay)
	}

	if lastErr == nil {
		return ErrNoAttempt
	}

	return lastErr
}
