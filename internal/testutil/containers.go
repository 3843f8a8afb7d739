// Package testutil provides helpers shared across integration tests.
//
// StartMosquitto, StartRedis and StartInflux launch disposable servers in Docker
// containers and skip the test unless DOCKER_AVAILABLE is set. WaitForMetric
// polls a Prometheus endpoint until a metric shows up.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	redis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// Default timeouts for helper operations
	ReadyTimeout  = 10 * time.Second
	MetricTimeout = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// RequireDocker skips t unless DOCKER_AVAILABLE is "true" or "1".
func RequireDocker(t testing.TB) {
	t.Helper()
	if v := os.Getenv("DOCKER_AVAILABLE"); v != "true" && v != "1" {
		t.Skip("docker not available")
	}
}

// StartMosquitto launches a temporary Mosquitto broker and returns its URL.
// The container is terminated when the test ends.
func StartMosquitto(t testing.TB) string {
	t.Helper()
	RequireDocker(t)
	ctx := context.Background()

	conf := "listener 1883\nallow_anonymous true\npersistence false\nlog_dest stdout\n"
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatalf("write mosquitto config: %v", err)
	}
	cont := startContainer(t, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	})
	broker := "tcp://" + endpoint(t, cont, "1883")

	waitCtx, cancel := context.WithTimeout(ctx, ReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		t.Fatalf("mosquitto not ready: %v", err)
	}
	return broker
}

// StartRedis launches a temporary Redis server and returns its address.
func StartRedis(t testing.TB) string {
	t.Helper()
	RequireDocker(t)
	cont := startContainer(t, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	})
	addr := endpoint(t, cont, "6379")

	ctx, cancel := context.WithTimeout(context.Background(), ReadyTimeout)
	defer cancel()
	cli := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = cli.Close() }()
	for {
		if err := cli.Ping(ctx).Err(); err == nil {
			return addr
		}
		select {
		case <-ctx.Done():
			t.Fatalf("redis not ready: %v", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Influx describes a provisioned InfluxDB 2 instance.
type Influx struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// StartInflux launches InfluxDB 2.7 with an initial org, bucket and admin
// token.
func StartInflux(t testing.TB) Influx {
	t.Helper()
	RequireDocker(t)
	inf := Influx{Token: "test-token", Org: "test-org", Bucket: "test-bucket"}
	cont := startContainer(t, tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "admin-password",
			"DOCKER_INFLUXDB_INIT_ORG":         inf.Org,
			"DOCKER_INFLUXDB_INIT_BUCKET":      inf.Bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": inf.Token,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	})
	inf.URL = "http://" + endpoint(t, cont, "8086")
	return inf
}

func startContainer(t testing.TB, req tc.ContainerRequest) tc.Container {
	t.Helper()
	ctx := context.Background()
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := cont.Terminate(context.Background()); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})
	return cont
}

func endpoint(t testing.TB, cont tc.Container, port string) string {
	t.Helper()
	ctx := context.Background()
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := cont.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("testutil-ready")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// WaitForMetric polls the given metrics URL until the provided substring is
// found in the output or the context is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}
