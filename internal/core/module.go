// Package core provides the module system foundation for chaingate.
// Modules register a factory from init(), are configured from their YAML
// section, provisioned with a scoped AppContext, and then started and
// stopped by App in dependency order.
package core

import "strings"

// ModuleID is a dotted identifier such as "memory.file" or "gateway.http".
// The part before the first dot is the namespace.
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, found := strings.Cut(string(id), ".")
	if !found {
		return ""
	}
	return ns
}

// Name returns the part of the ID after the first dot.
func (id ModuleID) Name() string {
	_, name, found := strings.Cut(string(id), ".")
	if !found {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every chaingate module.
type Module interface {
	ModuleInfo() ModuleInfo
}
