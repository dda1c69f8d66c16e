package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"patternbuilder.ai/internal/sim/builder"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
	StateEveryTicks    int `yaml:"state_every_ticks" json:"state_every_ticks"`

	Builder BuilderTuning `yaml:"builder" json:"builder"`
}

type BuilderTuning struct {
	TimerFull      int `yaml:"timer_full" json:"timer_full"`
	TimerSkip      int `yaml:"timer_skip" json:"timer_skip"`
	FieldMax       int `yaml:"field_max" json:"field_max"`
	FuelCost       int `yaml:"fuel_cost" json:"fuel_cost"`
	EnergyCapacity int `yaml:"energy_capacity" json:"energy_capacity"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		StateEveryTicks:    10,
		Builder: BuilderTuning{
			TimerFull:      20,
			TimerSkip:      1,
			FieldMax:       32,
			FuelCost:       10,
			EnergyCapacity: 64000,
		},
	}
}

// Load reads a tuning file; fields left at zero take their default.
func Load(path string) (Tuning, error) {
	t := Tuning{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Defaults(), fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fill(Defaults())
	if err := t.Validate(); err != nil {
		return Defaults(), fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) fill(d Tuning) {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz == 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.SnapshotEveryTicks == 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.StateEveryTicks == 0 {
		t.StateEveryTicks = d.StateEveryTicks
	}
	if t.Builder.TimerFull == 0 {
		t.Builder.TimerFull = d.Builder.TimerFull
	}
	if t.Builder.TimerSkip == 0 {
		t.Builder.TimerSkip = d.Builder.TimerSkip
	}
	if t.Builder.FieldMax == 0 {
		t.Builder.FieldMax = d.Builder.FieldMax
	}
	if t.Builder.EnergyCapacity == 0 {
		t.Builder.EnergyCapacity = d.Builder.EnergyCapacity
	}
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0 || t.TickRateHz > 1000:
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	case t.SnapshotEveryTicks < 0:
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	case t.Builder.TimerFull <= 0 || t.Builder.TimerSkip <= 0:
		return fmt.Errorf("builder timers must be positive")
	case t.Builder.FuelCost < 0:
		return fmt.Errorf("builder.fuel_cost must be >= 0")
	}
	return nil
}

// BuilderConfig is the driver configuration these values describe.
func (t Tuning) BuilderConfig() builder.Config {
	return builder.Config{
		TimerFull: t.Builder.TimerFull,
		TimerSkip: t.Builder.TimerSkip,
		FieldMax:  t.Builder.FieldMax,
		FuelCost:  t.Builder.FuelCost,
	}
}
