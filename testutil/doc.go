// Package testutil provides in-memory fakes for testing hub clients without a
// NATS server.
//
// MockBus is a shared message bus. Its Dial method satisfies
// natsclient.Dialer, so a session.Session built on it behaves like one on a
// real connection: publishes fan out to matching subscriptions, requests are
// answered by the first matching subscriber (or fail with
// nats.ErrNoResponders), and every published message is recorded in order.
// SimulateDisconnect, SimulateReconnect and SimulateClosed drive the
// connection hooks a real client would call.
//
//	bus := testutil.NewMockBus()
//	sess := session.New(bus.Dial)
//	require.NoError(t, sess.Acquire(ctx))
//	...
//	bus.SimulateReconnect()
//	testutil.WaitForMessageCount(t, bus, subject.DefinitionChanged("p1"), 2, time.Second)
//
// FakeCredentials stands in for the token manager, and MachineDefinitions is a
// small definition set covering every data type.
package testutil
