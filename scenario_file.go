package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadScenarioFile reads a custom scenario from a YAML file. The file carries
// the same shape as the built-in catalog: metadata plus a topology block with
// intersections (id, phases, lane_phase, action_phase) and routes.
func LoadScenarioFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario file: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	if s.ID == "" {
		return Scenario{}, &InvalidScenarioError{ScenarioID: path, Reason: "missing scenario id"}
	}
	if err := s.Topology.Validate(); err != nil {
		return Scenario{}, &InvalidScenarioError{ScenarioID: s.ID, Reason: err.Error()}
	}
	return s, nil
}
