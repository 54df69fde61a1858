// Package mqtt provides MQTT client connectivity for the MyHOME core service.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The service publishes discovery events over MQTT so the host automation
// platform and any UI can react without polling the HTTP API. The broker
// (Mosquitto) decouples the discovery engine from its consumers.
//
//	MyHOME core → MQTT Broker → host platform / UIs
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all discovery events
//	err = client.Subscribe(mqtt.Topics{}.AllDiscovery(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a discovered-device event
//	topic := mqtt.Topics{}.DiscoveryDevice("00:03:50:01:aa:bb")
//	client.Publish(topic, []byte(`{"where":"15","platform":"light"}`), 1, false)
package mqtt
