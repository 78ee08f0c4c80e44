package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"kanban-board/domain"
	"kanban-board/engine"
)

// LoadQuotas reads per-role limits from a YAML file such as
//
//	guest:
//	  boards: 1
//	  columnsPerBoard: 5
//	registered: {}
//
// Roles missing from the file keep their defaults. Unknown roles are an error.
func LoadQuotas(path string) (engine.Quotas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quotas: %w", err)
	}
	return ParseQuotas(data)
}

// ParseQuotas decodes a quota document; see LoadQuotas.
func ParseQuotas(data []byte) (engine.Quotas, error) {
	var raw map[string]engine.Limits
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse quotas: %w", err)
	}
	q := engine.DefaultQuotas()
	for name, limits := range raw {
		role := domain.Role(name)
		if _, ok := q[role]; !ok {
			return nil, fmt.Errorf("parse quotas: unknown role %q", name)
		}
		if limits.Boards < 0 || limits.ColumnsPerBoard < 0 || limits.TasksPerColumn < 0 || limits.SubtasksPerTask < 0 {
			return nil, fmt.Errorf("parse quotas: negative limit for %s", name)
		}
		q[role] = limits
	}
	return q, nil
}
