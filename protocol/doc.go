// Package protocol implements the MSB websocket wire format.
//
// Every message is a one-character tag, a space and a JSON document:
//
//	R {"uuid":"...","name":"...","events":[...],...}   register
//	E {"uuid":"...","eventId":"TEMP","priority":1,...} publish
//	C {"functionId":"SWITCH","functionParameters":{...},"correlationId":"..."}
//	K {"uuid":"...","params":{"sampling":100}}
//
// Connection state is reported by the broker with bare tokens such as
// IO_CONNECTED or NIO_REGISTRATION_ERROR.
//
// When SockJS framing is on, outbound messages are sent as a JSON array
// holding the message as one escaped string (["R {\"uuid\":...}"]) and
// inbound traffic arrives in SockJS frames: o (open), h (heartbeat),
// a[...] (messages) and c[code,reason] (close). DecodeFrame unpacks those
// frames; Classify then sorts each message by kind.
package protocol
