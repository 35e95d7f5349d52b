package tuning

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("tuning: invalid value")

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Width             int    `yaml:"width" json:"width"`
	Height            int    `yaml:"height" json:"height"`
	WallLifespan      int    `yaml:"wall_lifespan" json:"wall_lifespan"`
	TickIntervalMs    int    `yaml:"tick_interval_ms" json:"tick_interval_ms"`
	CascadeIntervalMs int    `yaml:"cascade_interval_ms" json:"cascade_interval_ms"`
	DragRadius        int    `yaml:"drag_radius" json:"drag_radius"`
	Algorithm         string `yaml:"algorithm" json:"algorithm"`
	Seed              int64  `yaml:"seed" json:"seed"`

	Sizes  map[string]int `yaml:"sizes" json:"sizes"`
	Speeds map[string]int `yaml:"speeds" json:"speeds"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:   "1.0",
		Width:             13,
		Height:            13,
		WallLifespan:      10,
		TickIntervalMs:    400,
		CascadeIntervalMs: 100,
		DragRadius:        2,
		Algorithm:         "bfs",
		Sizes:             map[string]int{"small": 13, "medium": 25, "large": 37},
		Speeds:            map[string]int{"slow": 800, "fast": 400, "turbo": 100},
	}
}

// Load reads path over Defaults; keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.Width <= 0 || t.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, t.Width, t.Height)
	case t.WallLifespan <= 0:
		return fmt.Errorf("%w: wall_lifespan %d", ErrInvalid, t.WallLifespan)
	case t.TickIntervalMs <= 0:
		return fmt.Errorf("%w: tick_interval_ms %d", ErrInvalid, t.TickIntervalMs)
	case t.CascadeIntervalMs <= 0:
		return fmt.Errorf("%w: cascade_interval_ms %d", ErrInvalid, t.CascadeIntervalMs)
	case t.DragRadius < 0:
		return fmt.Errorf("%w: drag_radius %d", ErrInvalid, t.DragRadius)
	}
	for name, v := range t.Speeds {
		if v <= 0 {
			return fmt.Errorf("%w: speed %q=%d", ErrInvalid, name, v)
		}
	}
	for name, v := range t.Sizes {
		if v <= 0 {
			return fmt.Errorf("%w: size %q=%d", ErrInvalid, name, v)
		}
	}
	return nil
}

func (t Tuning) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}

func (t Tuning) CascadeInterval() time.Duration {
	return time.Duration(t.CascadeIntervalMs) * time.Millisecond
}

// Speed looks up a named tick interval.
func (t Tuning) Speed(name string) (time.Duration, bool) {
	ms, ok := t.Speeds[name]
	return time.Duration(ms) * time.Millisecond, ok
}

// Size looks up a named square maze size.
func (t Tuning) Size(name string) (int, bool) {
	v, ok := t.Sizes[name]
	return v, ok
}

// SpeedNames returns preset names ordered from slowest to fastest.
func (t Tuning) SpeedNames() []string {
	names := make([]string, 0, len(t.Speeds))
	for n := range t.Speeds {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := t.Speeds[names[i]], t.Speeds[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}
