// Package workpool runs batches of independent tasks on a bounded pool
// shared across the process.
//
// Provisioning runs one task per role entry and launch runs one task per
// member. Both need the same shape: start everything, wait for everything,
// then decide. [Run] never returns early and never cancels siblings when
// one task fails, so a caller deciding to roll back sees the complete
// outcome set, including resources a slow sibling obtained after a fast
// one failed.
//
//	pool := workpool.New(8)
//	results := workpool.Run(ctx, pool, []workpool.Task[[]string]{
//	    func(ctx context.Context) ([]string, error) { return requestRole(ctx, "db") },
//	    func(ctx context.Context) ([]string, error) { return requestRole(ctx, "ROOT") },
//	})
//	if err := workpool.Errors(results); err != nil {
//	    // roll back every results[i].Value
//	}
package workpool
