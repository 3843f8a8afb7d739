// Package infra holds the adapters behind the core interfaces: the Redis
// state store, the Paho MQTT publisher, Prometheus and InfluxDB sinks,
// Sentry reporting, zerolog logging and OAuth2 source authentication.
// Adapters import core packages, never the reverse.
package infra
