// Package config loads the identity and behaviour settings of an MSB client.
//
// Configuration is layered with koanf: built-in defaults, then a file, then
// environment variables. The file is normally the application.properties
// every MSB client carries:
//
//	msb.url=http://localhost:8085
//	msb.uuid=76499ad5-e7b6-4e4a-9a1e-3a2f8f1f8c4b
//	msb.name=Go Sample SmartObject
//	msb.description=Go Sample SmartObject description
//	msb.token=76499ad5
//	msb.type=SmartObject
//
// YAML files with the same keys nested under "msb" work as well. Optional
// keys switch client behaviour (msb.debug, msb.validation,
// msb.autoreconnect, msb.reconnectinterval, msb.keepalive,
// msb.heartbeatinterval, msb.sockjsframing, msb.hostnameverification,
// msb.eventcache.enabled, msb.eventcache.size); see DefaultSettings.
//
// Any key can be overridden from the environment with the MSB_ prefix and
// "__" for nesting:
//
//	MSB_URL=https://msb.example.com MSB_EVENTCACHE__SIZE=50 ./my-service
//
// # Usage
//
//	cfg, err := config.Load("application.properties")
//	if err != nil {
//		log.Fatal(err)
//	}
//	c := client.New(cfg.Identity, client.Options{Settings: &cfg.Settings})
package config
