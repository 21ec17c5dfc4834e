// Package mqtt manages the DayBetter broker connection.
//
// This package manages:
//   - Certificate acquisition (disk files, cached bundle, cloud download)
//   - Mutually-authenticated TLS connection to the vendor broker
//   - Subscription to the account's device update topic
//   - Supervised reconnection with exponential backoff and a bounded
//     attempt budget
//   - Periodic connection health probing
//
// # Architecture
//
// DayBetter devices talk to the vendor's cloud broker; the bridge joins
// as one more MQTT client using a per-account certificate bundle. Each
// account has exactly two topics, keyed by the bundle's client ID:
//
//	d/{clientID}/c  device state updates (bridge subscribes)
//	d/{clientID}/s  control commands (bridge publishes)
//
// # Reconnection
//
// The paho library's automatic reconnection is disabled. The manager
// runs its own single supervised reconnect loop: at most one loop runs
// at a time, attempt n waits 2^n seconds (capped), and after the
// configured budget the manager stays disconnected until the process
// restarts. Shutdown suppresses reconnection entirely.
//
// # Usage
//
//	mgr := mqtt.New(cfg.MQTT, cfg.Cloud.AccountID, mqtt.Deps{
//	    Store:   bundleStore,
//	    Cloud:   cloudClient,
//	    Handler: dispatcher.HandleMessage,
//	    Logger:  logger.With("component", "mqtt"),
//	})
//	if err := mgr.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Disconnect()
//
//	mgr.PublishControl([]byte(`{"deviceName":"lamp","type":1,"on":true}`))
package mqtt
