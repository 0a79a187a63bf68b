// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file is loaded before expansion, and the MQTT_* variables override the
// broker section so a panel can be configured from the environment alone.
package config
