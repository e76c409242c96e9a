// Package config loads and validates the tracker hub configuration.
//
// Configuration is sourced in three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. A YAML file (configs/config.yaml by default)
//  3. TRACKHUB_* environment variables
//
// Secrets (MQTT credentials, the JWT secret, the InfluxDB token) should
// always come from the environment rather than the YAML file.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	client, err := mqtt.Connect(cfg.MQTT)
package config
