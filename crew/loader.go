package crew

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadAgents reads an agents roster file. Top-level keys are agent
// identifiers; key order is preserved.
func LoadAgents(path string) (*AgentRoster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return ParseAgents(data)
}

// ParseAgents parses agents roster YAML.
func ParseAgents(data []byte) (*AgentRoster, error) {
	keys, err := topLevelKeys(data)
	if err != nil {
		return nil, fmt.Errorf("parse agents roster: %w", err)
	}

	var agents map[string]AgentDef
	if err := yaml.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("parse agents roster: %w", err)
	}

	for key, def := range agents {
		if def.Role == "" {
			return nil, fmt.Errorf("agent %q: role is required", key)
		}
		if def.Goal == "" {
			return nil, fmt.Errorf("agent %q: goal is required", key)
		}
	}

	return &AgentRoster{Agents: agents, Order: keys}, nil
}

// LoadTasks reads a tasks roster file. Top-level keys are task identifiers
// and their file order is the sequential execution order.
func LoadTasks(path string) (*TaskRoster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	return ParseTasks(data)
}

// ParseTasks parses tasks roster YAML.
func ParseTasks(data []byte) (*TaskRoster, error) {
	keys, err := topLevelKeys(data)
	if err != nil {
		return nil, fmt.Errorf("parse tasks roster: %w", err)
	}

	var tasks map[string]TaskDef
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks roster: %w", err)
	}

	for key, def := range tasks {
		if def.Description == "" {
			return nil, fmt.Errorf("task %q: description is required", key)
		}
		if def.Agent == "" {
			return nil, fmt.Errorf("task %q: agent is required", key)
		}
	}

	return &TaskRoster{Tasks: tasks, Order: keys}, nil
}

// topLevelKeys returns the document's top-level mapping keys in file
// order. yaml.Unmarshal into a map loses ordering, so the node tree is
// walked separately.
func topLevelKeys(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping at the top level, got %v", root.Kind)
	}

	keys := make([]string, 0, len(root.Content)/2)
	for i := 0; i < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	return keys, nil
}
