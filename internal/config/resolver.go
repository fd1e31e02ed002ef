package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/chaingate/internal/core"
)

// namespacePriority orders module loading so that providers come before
// consumers: telemetry and storage first, the HTTP gateway last.
// Namespaces not listed load after the known ones.
var namespacePriority = map[string]int{
	"telemetry": 0,
	"memory":    1,
	"chain":     2,
	"agent":     3,
	"gateway":   4,
}

// Resolve returns the module IDs from the configuration in load order.
// Modules are grouped by namespace priority and sorted by ID within a
// group, so the order is deterministic.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(priority(a), priority(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func priority(id string) int {
	if p, ok := namespacePriority[core.ModuleID(id).Namespace()]; ok {
		return p
	}
	return len(namespacePriority)
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
