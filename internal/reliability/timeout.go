package reliability

import (
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// WithTimeout runs operation in its own goroutine and waits up to
// timeout for it to complete. At warnFraction*timeout a warning fires
// (informational, non-fatal) via warnFn if set. Completion is idempotent:
// a late success arriving after the timeout error was already returned is
// discarded.
func WithTimeout(operation func() (any, error), timeout time.Duration, name string, warnFn func(name string), warnFraction float64) (any, error) {
	if warnFraction <= 0 {
		warnFraction = 0.8
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	var once sync.Once

	go func() {
		result, err := operation()
		once.Do(func() { done <- outcome{result, err} })
	}()

	warnTimer := time.NewTimer(time.Duration(float64(timeout) * warnFraction))
	defer warnTimer.Stop()
	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-warnTimer.C:
			if warnFn != nil {
				warnFn(name)
			}
		case <-timeoutTimer.C:
			var zero any
			once.Do(func() { done <- outcome{zero, nil} })
			return nil, nearerr.New(nearerr.ConnectionTimeout, name+" timed out after "+timeout.String(), nil, nearerr.RecoveryRetry)
		}
	}
}
