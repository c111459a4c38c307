// Package resilience bounds how long a call to a slow dependency may run.
//
// Upstream fetches run under a Timeout. When the deadline passes, the
// operation's context is cancelled and the caller gets ErrTimeout at once,
// without waiting for the operation to notice the cancellation:
//
//	t := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: 8 * time.Second})
//
//	body, err := resilience.Call(ctx, t, func(ctx context.Context) ([]byte, error) {
//	    return client.GetJSON(ctx, target)
//	})
//	if errors.Is(err, resilience.ErrTimeout) {
//	    // serve a stale copy
//	}
package resilience
