package cmd

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/infra/logger"
	"github.com/kilianp07/fleetpulse/simulator"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand_CSV(t *testing.T) {
	sim := simulator.NewServer(simulator.GenerateFleet(4, 3), simulator.Faults{}, logger.NopLogger{})
	ts := httptest.NewServer(sim.Handler())
	defer ts.Close()

	out, err := execute(t, "run", "--url", ts.URL+"/latest-data", "--format", "csv", "--retries", "0")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "vehicle_id,status"))
}

func TestRunCommand_TransportError(t *testing.T) {
	_, err := execute(t, "run", "--url", "http://127.0.0.1:1/latest-data", "--timeout", "500ms", "--retries", "0", "--format", "json")
	require.Error(t, err)
}
