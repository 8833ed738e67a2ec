// Package msbclient is a Go client for the websocket interface of the
// Manufacturing Service Bus (MSB).
//
// A client registers a SmartObject or Application at the broker with a
// self-description of the events it publishes, the functions the broker may
// call on it and its configuration parameters. After registration it
// publishes events, receives function calls and accepts configuration
// updates from the broker.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│              client                 │  Connect, Register, Publish,
//	│  (state machine, dispatch, cache)   │  function and config dispatch
//	└─────────────────────────────────────┘
//	     ↓ declares              ↓ sends / receives
//	┌──────────────────┐  ┌──────────────────────────┐
//	│ selfdescription  │  │ protocol                 │  R / E / C / K messages,
//	│ dataformat       │  │ (tags, tokens, framing)  │  SockJS frames
//	│ validation       │  └──────────────────────────┘
//	└──────────────────┘         ↓
//	                      ┌──────────────────────────┐
//	                      │ transport                │  gorilla/websocket,
//	                      │ (dial, read, heartbeat)  │  ping/pong keepalive
//	                      └──────────────────────────┘
//
// Supporting packages: config loads identity and settings from
// application.properties, YAML and MSB_ environment variables; errors
// classifies failures as transient, invalid or fatal; metric exposes
// Prometheus metrics; health reports the session state; pkg/buffer backs
// the offline event cache.
//
// # Basic Usage
//
//	cfg, err := config.Load("application.properties")
//	if err != nil {
//		return err
//	}
//	c, err := client.New(cfg.Identity, client.Options{Settings: &cfg.Settings})
//	if err != nil {
//		return err
//	}
//
//	_ = c.AddEvent("TEMPERATURE", "Temperature", "Current temperature", "float", "LOW", false)
//	_ = c.AddFunction("SET_POINT", "Set point", "Change the set point", "float",
//		func(params map[string]any) { log.Println(params["dataObject"]) }, false, nil)
//
//	if err := c.Connect(ctx, ""); err != nil {
//		return err
//	}
//	c.Register()
//
//	_ = c.Publish("TEMPERATURE", client.WithValue(21.5), client.WithCached(true))
//
//	c.Disconnect()
//	c.Wait()
//
// Events published before the broker acknowledged the registration are
// cached (when requested and the cache is enabled) and sent in order once
// it does. See cmd/msb-sample for a complete SmartObject.
package msbclient
