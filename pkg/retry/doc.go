// Package retry runs operations again after transient failures.
//
// Retryability comes from the typed errors in pkg/errors: network, rate
// limit and server errors are retried, everything else returns at once.
//
//	item, err := retry.DoWithResult(ctx, retry.FromSettings(cfg.Retry, log),
//	    func(ctx context.Context) (*Item, error) { return client.get(ctx, url) })
package retry
