// Package retry repeats a failing call with growing waits.
//
// Delays grow exponentially by Config.Multiplier or linearly by
// InitialDelay times the attempt number. Config.Retryable narrows which
// errors are retried at all, and Stop marks a single error as final.
//
// Hub read requests use BusRequest, which waits 1s then 2s:
//
//	resp, err := retry.DoWithResult(ctx, retry.BusRequest(errors.IsRetryable),
//	    func() ([]byte, error) {
//	        return sched.Request(ctx, subj, payload, 2*time.Second)
//	    })
package retry
