// Package mqtt provides MQTT client connectivity for the tracker hub.
//
// This package manages:
//   - Connection to the broker with bounded fixed-interval reconnection
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for hub offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The hub uses MQTT as the message bus connecting trackers to the server.
// Devices publish status, telemetry, audio, and location to per-device
// topics; the hub publishes control and firmware commands back.
//
//	Tracker Devices ↔ MQTT Broker ↔ Tracker Hub
//
// # Presence
//
// The hub announces itself on the retained server/status topic: "online"
// on every successful connect, "offline" on clean shutdown, and "offline"
// via LWT when the broker detects an ungraceful drop. Devices watch this
// topic to know whether the server is reachable.
//
// # Reconnection
//
// The paho auto-reconnect is disabled. Connection loss starts a
// fixed-interval retry loop bounded by cfg.Reconnect.Interval seconds ×
// cfg.Reconnect.MaxAttempts. Exhausting the budget fires the
// OnReconnectExhausted callback; the hub is expected to shut down at that
// point, since it cannot serve trackers without the bus.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device location updates
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceLocation(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.DeviceControl("esp32-01")
//	client.Publish(topic, []byte(`{"command":"restart"}`), 1, false)
package mqtt
