package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `source:
  url: "http://localhost:5000/latest-data"
  timeout_ms: 750
  retry:
    max_retries: 2
  auth:
    token: "secret"
thresholds:
  warn_speed: 100
server:
  address: ":9000"
  poll_interval_seconds: 15
metrics:
  prometheus_port: ":9100"
  sinks:
    - type: "nop"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "fleet"
  qos:
    summary: 1
redis:
  addr: "localhost:6379"
  prefix: "fp"
run_log:
  type: "sqlite"
  path: "runs.db"
sentry:
  dsn: ""
log:
  level: "debug"
simulator:
  fleet_size: 25
  faults:
    null_rate: 0.1
    delay: "200ms"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"source.url", cfg.Source.URL, "http://localhost:5000/latest-data"},
		{"source.timeout", cfg.Source.Timeout(), 750 * time.Millisecond},
		{"source.retry", cfg.Source.Retry.MaxRetries, 2},
		{"source.auth", cfg.Source.Auth.Token, "secret"},
		{"thresholds.warn_speed", cfg.Thresholds.WarnSpeed, 100.0},
		{"thresholds.max_speed default", cfg.Thresholds.MaxSpeed, 300.0},
		{"server.address", cfg.Server.Address, ":9000"},
		{"server.poll", cfg.Server.PollInterval(), 15 * time.Second},
		{"metrics.port", cfg.Metrics.PrometheusPort, ":9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.prefix", cfg.MQTT.TopicPrefix, "fleet"},
		{"mqtt.qos", cfg.MQTT.QoS["summary"], byte(1)},
		{"redis.addr", cfg.Redis.Addr, "localhost:6379"},
		{"run_log.type", cfg.RunLog.Type, "sqlite"},
		{"log.level", cfg.Log.Level, "debug"},
		{"simulator.fleet_size", cfg.Simulator.FleetSize, 25},
		{"simulator.delay", cfg.Simulator.Faults.Delay, 200 * time.Millisecond},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout())
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 120.0, cfg.Thresholds.WarnSpeed)
	assert.Zero(t, cfg.Server.PollInterval())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := write(t, "config.json", `{"source":{"url":"http://file"},"log":{"level":"warn"}}`)
	t.Setenv("FP_SOURCE__URL", "http://env")
	t.Setenv("FP_SOURCE__TIMEOUT_MS", "1500")
	t.Setenv("FP_SERVER__POLL_INTERVAL_SECONDS", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.Source.URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Source.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Server.PollInterval())
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(write(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	for name, doc := range map[string]string{
		"level":      "log:\n  level: loud\n",
		"thresholds": "thresholds:\n  warn_speed: 400\n",
		"run_log":    "run_log:\n  type: csv\n  path: x\n",
		"run_path":   "run_log:\n  type: jsonl\n",
		"timeout":    "source:\n  timeout_ms: -1\n",
		"faults":     "simulator:\n  faults:\n    null_rate: 2\n",
		"prometheus": "metrics:\n  prometheus_port: \"9090\"\n",
	} {
		_, err := Load(write(t, "config.yaml", doc))
		assert.Error(t, err, name)
	}
}
