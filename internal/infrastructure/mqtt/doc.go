// Package mqtt provides MQTT connectivity for SceneFixer.
//
// The broker carries two kinds of traffic: request/response exchanges with
// the home-automation platform bridge, and health events published by the
// core (device health, scene audits, repair log entries).
//
//	SceneFixer core ↔ MQTT broker ↔ platform bridge (HomeKit, Hubitat, ...)
//
// The client reconnects automatically and restores subscriptions. A Last
// Will on scenefixer/system/status marks the core offline if it dies; while
// online the retained status carries the engine summary (see SetStatusProvider).
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllPlatformResponses("homekit"), 1,
//	    func(topic string, payload []byte) error {
//	        fmt.Printf("%s = %s\n", topic, payload)
//	        return nil
//	    })
package mqtt
