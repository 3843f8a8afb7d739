package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/fleetpulse/core/model"
)

// Batch is the decoder output: records in source key order plus the soft
// errors of skipped entries.
type Batch struct {
	Records []model.VehicleRecord
	Errors  []model.RecordError
}

// ByID returns the records keyed by vehicle id.
func (b Batch) ByID() map[string]model.VehicleRecord {
	out := make(map[string]model.VehicleRecord, len(b.Records))
	for _, r := range b.Records {
		out[r.ID] = r
	}
	return out
}

// Decoder turns raw telemetry payloads into vehicle records. It is stateless.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses data. A payload that is not a JSON object, or that lacks a
// "telemetry" object, fails with *DecodeError. Individual malformed entries
// are skipped and reported in Batch.Errors.
func (d *Decoder) Decode(data []byte) (Batch, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return Batch{}, &DecodeError{Kind: KindMalformedJSON, Err: err}
	}
	if root == nil {
		return Batch{}, &DecodeError{Kind: KindMalformedJSON, Err: errors.New("payload is null")}
	}
	raw, ok := root["telemetry"]
	if !ok {
		return Batch{}, &DecodeError{Kind: KindMissingTelemetry, Err: errors.New(`missing "telemetry" key`)}
	}
	if !isObject(raw) {
		return Batch{}, &DecodeError{Kind: KindMissingTelemetry, Err: errors.New(`"telemetry" is not an object`)}
	}

	var batch Batch
	seen := make(map[string]struct{})
	err := eachMember(raw, func(id string, value json.RawMessage) {
		rec, err := decodeEntry(id, value)
		if err == nil {
			if _, dup := seen[id]; dup {
				err = errors.New("duplicate vehicle id")
			}
		}
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{VehicleID: id, Message: err.Error()})
			return
		}
		seen[id] = struct{}{}
		batch.Records = append(batch.Records, rec)
	})
	if err != nil {
		return Batch{}, &DecodeError{Kind: KindMalformedJSON, Err: err}
	}
	return batch, nil
}

func decodeEntry(id string, value json.RawMessage) (model.VehicleRecord, error) {
	if id == "" {
		return model.VehicleRecord{}, errors.New("empty vehicle id")
	}
	if !isObject(value) {
		return model.VehicleRecord{}, errors.New("telemetry entry is not an object")
	}
	var e Entry
	if err := json.Unmarshal(value, &e); err != nil {
		return model.VehicleRecord{}, fmt.Errorf("malformed telemetry entry: %w", err)
	}
	rec := model.VehicleRecord{
		ID:        id,
		Speed:     num(e.Sensors.GPS.Speed),
		Latitude:  num(e.Sensors.GPS.Latitude),
		Longitude: num(e.Sensors.GPS.Longitude),
		Mode:      e.Mode,
	}
	if e.Timestamp != nil {
		rec.Timestamp = *e.Timestamp
	}
	if e.Battery != nil {
		rec.Battery = &model.BatteryReading{
			SoC:         num(e.Battery.SoC),
			Temperature: num(e.Battery.Temperature),
			Voltage:     num(e.Battery.Voltage),
			Current:     num(e.Battery.Current),
		}
	}
	if e.Motor != nil {
		rec.Motor = &model.MotorReading{
			RPM:         num(e.Motor.RPM),
			Temperature: num(e.Motor.Temperature),
			Load:        num(e.Motor.Load),
		}
	}
	return rec, nil
}

// eachMember walks a JSON object and calls fn for every member in source order.
func eachMember(obj json.RawMessage, fn func(key string, value json.RawMessage)) error {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if _, err := dec.Token(); err != nil { // opening brace
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		fn(key, value)
	}
	_, err := dec.Token() // closing brace
	return err
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Encode builds a payload for the given records. It is the inverse of Decode
// and is used by the simulator and tests.
func Encode(records []model.VehicleRecord) ([]byte, error) {
	p := Payload{Telemetry: make(map[string]Entry, len(records))}
	for _, r := range records {
		p.Telemetry[r.ID] = EntryFor(r)
	}
	return json.Marshal(p)
}

// EntryFor converts a record into its wire form.
func EntryFor(r model.VehicleRecord) Entry {
	e := Entry{
		VehicleID: r.ID,
		Mode:      r.Mode,
		Sensors: Sensors{GPS: GPS{
			Speed:     F(r.Speed),
			Latitude:  F(r.Latitude),
			Longitude: F(r.Longitude),
		}},
	}
	if r.Timestamp != 0 {
		ts := r.Timestamp
		e.Timestamp = &ts
	}
	if b := r.Battery; b != nil {
		e.Battery = &Battery{SoC: F(b.SoC), Temperature: F(b.Temperature), Voltage: F(b.Voltage), Current: F(b.Current)}
	}
	if m := r.Motor; m != nil {
		e.Motor = &Motor{RPM: F(m.RPM), Temperature: F(m.Temperature), Load: F(m.Load)}
	}
	return e
}
