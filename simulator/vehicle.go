package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/fleetpulse/core/model"
)

// Mode is the driving mode of a simulated vehicle.
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeAccelerating Mode = "accelerating"
	ModeCruising     Mode = "cruising"
	ModeDecelerating Mode = "decelerating"
	ModeCharging     Mode = "charging"
)

// Vehicle is the state of one simulated vehicle.
type Vehicle struct {
	ID        string
	Mode      Mode
	Speed     float64 // km/h
	Latitude  float64
	Longitude float64
	Heading   float64 // degrees

	SoC         float64 // percent
	BatteryTemp float64
	Voltage     float64
	Current     float64
	MotorTemp   float64
	MotorLoad   float64
	RPM         float64

	ambient float64
	inMode  time.Duration
	fixed   *model.VehicleRecord
}

// NewVehicle places a vehicle at rest around the given origin.
func NewVehicle(id string, rng *rand.Rand, origin model.Position) *Vehicle {
	soc := 70 + rng.Float64()*25
	return &Vehicle{
		ID:          id,
		Mode:        ModeIdle,
		Latitude:    origin.Lat + rng.Float64()*0.2,
		Longitude:   origin.Lon + rng.Float64()*0.2,
		Heading:     rng.Float64() * 360,
		SoC:         soc,
		BatteryTemp: 20 + rng.Float64()*5,
		Voltage:     380 + (soc-70)*0.2,
		MotorTemp:   25 + rng.Float64()*5,
		ambient:     15 + rng.Float64()*15,
	}
}

// Step advances the vehicle by dt. Vehicles loaded from a scenario never
// change.
func (v *Vehicle) Step(dt time.Duration, rng *rand.Rand) {
	if v.fixed != nil || dt <= 0 {
		return
	}
	sec := dt.Seconds()
	v.inMode += dt
	v.nextMode(rng)

	switch v.Mode {
	case ModeIdle:
		v.Speed = math.Max(0, v.Speed-5*sec)
		v.MotorLoad, v.RPM = 0, 0
		v.MotorTemp = v.MotorTemp*0.98 + v.ambient*0.02
		v.discharge(0.001 * sec)
		v.Current = rng.Float64()*2 - 1
	case ModeAccelerating:
		acc := 10 * math.Max(0, 1-v.Speed/100)
		v.Speed = math.Min(120, v.Speed+acc*sec)
		v.MotorLoad = 40 + v.Speed*0.5
		v.RPM = v.Speed * 50
		v.MotorTemp += v.MotorLoad * 0.01 * sec
		v.discharge((0.008 + v.MotorLoad*0.0002) * sec)
		v.Current = -50 - v.MotorLoad*0.5
	case ModeCruising:
		v.Speed = clamp(v.Speed+(rng.Float64()*2-1)*sec, 40, 100)
		v.MotorLoad = 30 + v.Speed*0.3
		v.RPM = v.Speed * 50
		v.MotorTemp = v.MotorTemp*0.99 + (30+v.MotorLoad*0.2)*0.01
		v.discharge((0.005 + v.MotorLoad*0.0001) * sec)
		v.Current = -30 - v.MotorLoad*0.3
	case ModeDecelerating:
		v.Speed = math.Max(0, v.Speed-(5+v.Speed*0.1)*sec)
		v.MotorLoad = math.Max(0, v.MotorLoad-10*sec)
		v.RPM = v.Speed * 50
		v.MotorTemp = v.MotorTemp*0.99 + (25+v.ambient)*0.01
		v.discharge((0.003 + v.MotorLoad*0.0001) * sec)
		v.Current = -20 - v.MotorLoad*0.2
	case ModeCharging:
		v.Speed, v.MotorLoad, v.RPM = 0, 0, 0
		v.MotorTemp = v.MotorTemp*0.98 + v.ambient*0.02
		v.SoC = math.Min(100, v.SoC+0.02*sec)
		v.Current = 40 + rng.Float64()*10 - 5
		v.Voltage = 380 + (v.SoC-70)*0.2
	}
	v.BatteryTemp = v.BatteryTemp*0.95 + 0.02*v.MotorTemp + 0.03*v.ambient

	if v.Speed > 0 {
		dist := v.Speed / 3.6 * sec
		rad := v.Heading * math.Pi / 180
		v.Latitude = clamp(v.Latitude+dist*math.Cos(rad)*9e-6, -90, 90)
		v.Longitude = clamp(v.Longitude+dist*math.Sin(rad)*1.1e-5, -180, 180)
	}
}

func (v *Vehicle) nextMode(rng *rand.Rand) {
	next := v.Mode
	switch v.Mode {
	case ModeIdle:
		if v.inMode > seconds(5+rng.Intn(15)) {
			next = ModeAccelerating
			if v.SoC < 30 || rng.Intn(100) < 10 {
				next = ModeCharging
			}
		}
	case ModeAccelerating:
		if v.Speed >= 50+rng.Float64()*30 || v.inMode > seconds(10+rng.Intn(20)) {
			next = ModeCruising
		}
	case ModeCruising:
		if v.inMode > seconds(60+rng.Intn(240)) {
			if rng.Intn(100) < 70 {
				next = ModeDecelerating
			} else {
				v.Heading = math.Mod(v.Heading+rng.Float64()*60-30+360, 360)
			}
		}
	case ModeDecelerating:
		if v.Speed < 5 {
			next = ModeIdle
		}
	case ModeCharging:
		if v.SoC >= 90 || v.inMode > seconds(600+rng.Intn(1200)) {
			next = ModeIdle
		}
	}
	if next != v.Mode {
		v.Mode, v.inMode = next, 0
	}
}

func (v *Vehicle) discharge(pct float64) {
	v.SoC = math.Max(0, v.SoC-pct)
}

// Record converts the vehicle state into a telemetry record.
func (v *Vehicle) Record(at time.Time) model.VehicleRecord {
	if v.fixed != nil {
		r := *v.fixed
		r.Timestamp = at.UnixMilli()
		return r
	}
	return model.VehicleRecord{
		ID:        v.ID,
		Speed:     round(v.Speed, 1),
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
		Mode:      string(v.Mode),
		Timestamp: at.UnixMilli(),
		Battery: &model.BatteryReading{
			SoC:         round(v.SoC, 1),
			Temperature: round(v.BatteryTemp, 1),
			Voltage:     round(v.Voltage, 1),
			Current:     round(v.Current, 1),
		},
		Motor: &model.MotorReading{
			RPM:         math.Trunc(v.RPM),
			Temperature: round(v.MotorTemp, 1),
			Load:        round(v.MotorLoad, 1),
		},
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
