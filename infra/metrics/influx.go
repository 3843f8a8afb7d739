package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/infra/logger"
)

// InfluxSink writes pipeline runs and vehicle states to an InfluxDB instance
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one fleet_run point and, on success, one fleet_summary point.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fleet_run").
		AddTag("outcome", ev.Outcome).
		AddTag("run_id", ev.RunID).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("soft_errors", ev.SoftErrors).
		SetTime(ev.Time)
	if ev.ErrorKind != "" {
		p = p.AddTag("error_kind", ev.ErrorKind)
	}
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return err
	}
	if ev.Summary == nil {
		return nil
	}
	sum := ev.Summary
	sp := write.NewPointWithMeasurement("fleet_summary").
		AddTag("run_id", ev.RunID).
		AddField("total_vehicles", sum.TotalVehicles).
		AddField("valid_vehicles", sum.ValidVehicles).
		AddField("average_speed", round3(sum.AverageSpeed)).
		AddField("centroid_lat", sum.Centroid.Lat).
		AddField("centroid_lon", sum.Centroid.Lon).
		AddField("normal", sum.StatusCounts[model.StatusNormal]).
		AddField("warning", sum.StatusCounts[model.StatusWarning]).
		AddField("invalid", sum.StatusCounts[model.StatusInvalid]).
		SetTime(sum.GeneratedAt)
	return s.writeAPI.WritePoint(ctx, sp)
}

// RecordVehicleStates writes one vehicle_state point per vehicle.
func (s *InfluxSink) RecordVehicleStates(evs []coremetrics.VehicleStateEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		v := ev.Vehicle
		p := write.NewPointWithMeasurement("vehicle_state").
			AddTag("vehicle_id", v.ID).
			AddTag("status", v.Status.String()).
			AddField("speed", round3(v.Speed)).
			AddField("latitude", v.Latitude).
			AddField("longitude", v.Longitude)
		if v.Mode != "" {
			p = p.AddTag("mode", v.Mode)
		}
		if v.Battery != nil {
			p = p.AddField("battery_soc", round3(v.Battery.SoC)).
				AddField("battery_temperature", round3(v.Battery.Temperature))
		}
		if v.Motor != nil {
			p = p.AddField("motor_temperature", round3(v.Motor.Temperature))
		}
		if len(v.Reasons) > 0 {
			p = p.AddField("reasons", strings.Join(v.Reasons, "; "))
		}
		points = append(points, p.SetTime(ev.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
