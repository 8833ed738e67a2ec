// Package transport wraps a gorilla/websocket connection to the MSB broker.
//
// A Dialer opens connections; hostname verification can be switched off
// for brokers with self-signed certificates. A Conn serializes writes,
// runs an optional client-side heartbeat (ping every interval, terminate
// when the previous ping got no pong) and hands inbound text messages to
// a callback from ReadLoop.
//
//	conn, err := transport.NewDialer(transport.Options{}).Dial(ctx, url)
//	if err != nil {
//		return err
//	}
//	conn.StartHeartbeat(8 * time.Second)
//	go func() {
//		err := conn.ReadLoop(func(msg []byte) { ... })
//		...
//	}()
//	_ = conn.Send([]byte(`R {...}`))
package transport
