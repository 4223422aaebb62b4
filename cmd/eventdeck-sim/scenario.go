package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario scripts the non-probe events the simulator emits.
type Scenario struct {
	Events []ScriptedEvent `yaml:"events"`
}

// ScriptedEvent is one recurring event: a kind, an emission period, and an
// arbitrary payload.
type ScriptedEvent struct {
	Kind    string         `yaml:"kind"`
	Every   string         `yaml:"every"`
	Payload map[string]any `yaml:"payload"`
}

// Interval parses the emission period, defaulting to 5s on bad input.
func (e ScriptedEvent) Interval() time.Duration {
	d, err := time.ParseDuration(e.Every)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func loadScenario(path string) (Scenario, error) {
	var sc Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario: %w", err)
	}
	return sc, nil
}

// defaultScenario covers enough kinds to exercise prefix filtering and the
// include/exclude tokens.
func defaultScenario() Scenario {
	return Scenario{Events: []ScriptedEvent{
		{
			Kind:    "service.health",
			Every:   "3s",
			Payload: map[string]any{"ok": true, "latency_ms": 12},
		},
		{
			Kind:    "task.completed",
			Every:   "7s",
			Payload: map[string]any{"id": "t-1042", "status": "ok"},
		},
		{
			Kind:    "task.failed",
			Every:   "13s",
			Payload: map[string]any{"id": "t-7", "status": "error", "reason": "timeout"},
		},
	}}
}
