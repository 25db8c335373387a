// Package retry provides exponential backoff for transient failures.
//
// Do runs an operation up to MaxAttempts times, sleeping between attempts
// with an exponentially growing, optionally jittered delay capped at
// MaxDelay. The context cancels both attempts and backoff sleeps.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return listener.Bind()
//	})
//
// Errors wrapped with NonRetryable, or rejected by Config.RetryIf, end the
// loop immediately:
//
//	cfg := retry.DefaultConfig()
//	cfg.RetryIf = errors.IsTransient
//
// A single-attempt config (Once) returns the operation's error unwrapped.
package retry
