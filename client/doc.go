// Package client connects a SmartObject or Application to an MSB broker.
//
// A Client owns one identity, the self-description built from declared
// events, functions and configuration parameters, and one websocket
// session. Declarations are made before connecting:
//
//	c, err := client.New(cfg.Identity, client.Options{Settings: &cfg.Settings})
//	if err != nil {
//		return err
//	}
//	_ = c.AddEvent("TEMPERATURE", "Temperature", "Current temperature", "float", "LOW", false)
//	_ = c.AddFunction("SWITCH", "Switch", "Turn on or off", "boolean",
//		func(params map[string]any) { ... }, false, nil)
//
//	if err := c.Connect(ctx, ""); err != nil {
//		return err
//	}
//	c.Register()
//	_ = c.Publish("TEMPERATURE", client.WithValue(21.5), client.WithCached(true))
//
// Connect and Register return immediately. The session moves through
// Connecting, Connected, Registering and Registered; Subscribe and
// OnStateChange report every change together with the broker token that
// caused it. While not registered, events published with the cached flag
// wait in a bounded cache and are sent in order once the broker
// acknowledges the registration. After a lost connection the client
// reconnects on a fixed interval (at least three seconds) and registers
// again, unless auto-reconnect is disabled or Disconnect was called.
package client
