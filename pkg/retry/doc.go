// Package retry runs an operation until it succeeds, the retry predicate
// rejects the error, the attempt budget is spent or the context is cancelled.
//
// The feed fetch uses an unlimited budget with a fixed delay so that a flaky
// network never advances the cursor:
//
//	err := retry.Do(func() error {
//		page, err = client.FetchPage(ctx, cursor)
//		return err
//	}, &retry.Config{
//		MaxAttempts: 0,
//		Backoff:     &retry.ConstantBackoff{Delay: 30 * time.Second},
//		RetryIf:     errors.IsTransient,
//		Context:     ctx,
//		Logger:      log,
//		Operation:   "fetch page",
//	})
//
// Image downloads use a budget of three attempts one second apart.
package retry
