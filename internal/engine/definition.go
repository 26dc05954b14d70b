package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes from "30s"-style strings in YAML and JSON definition
// documents. Bare numbers are treated as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration: %s", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration: %s", string(data))
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Definition is the consumed deployment definition document. It is decoded
// from YAML by the CLI and from JSON by the HTTP API, then validated into a
// Deployment.
type Definition struct {
	Name        string            `yaml:"name" json:"name"`
	Version     string            `yaml:"version" json:"version"`
	Mode        ExecutionMode     `yaml:"mode" json:"mode"`
	MaxDuration Duration          `yaml:"max_duration" json:"max_duration,omitempty"`
	Stages      []StageDefinition `yaml:"stages" json:"stages"`
}

// StageDefinition describes one stage of a definition document.
type StageDefinition struct {
	Name              string                 `yaml:"name" json:"name"`
	Strategy          StrategyType           `yaml:"strategy" json:"strategy"`
	Config            map[string]interface{} `yaml:"config" json:"config,omitempty"`
	Dependencies      []string               `yaml:"dependencies" json:"dependencies,omitempty"`
	RollbackOnFailure *bool                  `yaml:"rollback_on_failure" json:"rollback_on_failure,omitempty"`
	Gates             []GateDefinition       `yaml:"gates" json:"gates,omitempty"`
}

// GateDefinition describes one gate of a stage definition.
type GateDefinition struct {
	Type         GateType           `yaml:"type" json:"type"`
	Timeout      Duration           `yaml:"timeout" json:"timeout,omitempty"`
	Approvers    []string           `yaml:"approvers" json:"approvers,omitempty"`
	ScheduleTime time.Time          `yaml:"schedule_time" json:"schedule_time,omitempty"`
	Metrics      []string           `yaml:"metrics" json:"metrics,omitempty"`
	Thresholds   map[string]float64 `yaml:"thresholds" json:"thresholds,omitempty"`
	PollInterval Duration           `yaml:"poll_interval" json:"poll_interval,omitempty"`
}

// ParseDefinition decodes a YAML deployment definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse deployment definition: %w", err)
	}
	return &def, nil
}
