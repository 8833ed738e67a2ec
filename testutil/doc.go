// Package testutil provides an in-process MSB broker for tests.
//
// Broker speaks the websocket side of the MSB protocol: it accepts any
// connection path, greets new sessions with IO_CONNECTED, acknowledges
// registrations with IO_REGISTERED and records every message a client
// sends. Tests push function calls, configuration updates and tokens with
// Send, and simulate network loss with DropAll.
//
//	broker := testutil.NewBroker(t, true)
//	c.Connect(ctx, broker.URL())
//	...
//	broker.Send(`C {"functionId":"SWITCH","functionParameters":{"on":true}}`)
//	events := broker.Events()
package testutil
