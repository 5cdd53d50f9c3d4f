// Package datahub is a client for typed hub variables exchanged over a NATS
// bus.
//
// Providers own a set of variables, each with a key, a data type, an access
// mode, a value, a quality and a timestamp. They announce the definition set
// and publish value changes. Consumers discover those definitions, read
// snapshots, follow changes and write values back. Both sides share one
// authenticated connection per process.
//
// # Layers
//
// The module is built bottom-up. Every layer depends only on the ones above it
// in this list:
//
//   - hub: the data model. VariableDefinition, Value, Quality, VariableState,
//     and the type inference and coercion used where untyped input enters.
//   - codec: FlatBuffers encoding of definitions, values, queries and write
//     commands. Two independent implementations must produce the same bytes,
//     so builder order and field defaults are fixed.
//   - fingerprint: a stable 64-bit hash of a definition set. Values carry the
//     fingerprint of the definitions they were encoded against.
//   - subject: the bus subject for every event, query and command.
//   - token: OAuth2 client-credential tokens with proactive refresh, a
//     single in-flight fetch, and an auth-failure circuit breaker.
//   - natsclient: the NATS connection behind a small Transport interface.
//   - scheduler: bounds concurrent requests on one connection and retries
//     transient failures with backoff.
//   - session: a reference-counted connection shared by every provider and
//     consumer in the process. It refreshes credentials and fans out
//     disconnect, reconnect and close events.
//   - discovery: a TTL cache of provider definitions with request
//     deduplication. Lookups try the bus, then the REST API, then manually
//     configured variables.
//   - provider and consumer: the two roles.
//
// errors, health, metric and config are shared by all layers. cmd/datahub
// wires them into a binary.
//
// # Providing variables
//
//	sess := session.New(natsclient.Dial(url), session.WithCredentials(tokens))
//	p, err := provider.New(sess, provider.Config{ProviderID: "plc-1", EnableWrites: true})
//	if err != nil {
//	    return err
//	}
//	_, _ = p.Define("line.speed", hub.DataTypeFloat64)
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop(ctx)
//
//	_ = p.Set(ctx, "line.speed", 1.5)
//	_ = p.Ingest(ctx, map[string]any{"line": map[string]any{"state": "running"}})
//
// Ingest flattens nested objects into dotted keys and defines new keys on the
// fly. A new key changes the fingerprint, so the definition event is
// published before the first value that depends on it.
//
// # Consuming variables
//
//	defs, _ := discovery.New(ctx, sess)
//	c, _ := consumer.New(sess, defs, consumer.Config{ProviderID: "plc-1"})
//	_ = c.Start(ctx)
//	_ = c.Subscribe(ctx, func(ctx context.Context, u consumer.Update) {
//	    for _, v := range u.Variables {
//	        fmt.Println(v.Key, v.Value)
//	    }
//	})
//	_, _ = c.Write(ctx, consumer.WriteItem{Key: "line.speed", Value: 2.0})
//
// Subscribe delivers a snapshot first and then changes. After a reconnect
// the consumer re-subscribes and delivers a fresh snapshot, because changes
// published while it was offline are lost.
//
// # Delivery
//
// Pub/sub is at most once. Reads use request/reply and either get an answer
// or an error. A value whose fingerprint does not match the cached
// definition set causes the cache entry to be dropped and looked up again.
package datahub
