// Package worker runs callbacks on a bounded set of goroutines.
//
// A provider hands decoded write commands to the user's handler through a
// Pool, so a slow or panicking handler never stalls the bus subscription
// that delivered them. Submit does not block. When the queue is full the
// item is dropped and ErrQueueFull returned.
//
//	m, err := worker.RegisterMetrics(registry, "provider_plc_1_writes")
//	...
//	pool, err := worker.NewPool(4, 256, handle, worker.WithMetrics[provider.Write](m))
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// A Pool runs once. Register metrics once per name and pass them to each
// replacement pool.
package worker
