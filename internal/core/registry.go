package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// registry holds every compiled-in module, keyed by "namespace.name".
var registry = struct {
	sync.RWMutex
	byID map[ModuleID]ModuleInfo
}{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule records a module's ModuleInfo. Call it from init().
//
// It panics on a duplicate ID, a nil constructor, or an ID that is not of
// the form "namespace.name".
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if err := checkModuleID(info.ID); err != nil {
		panic(err.Error())
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: nil constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("module %s registered twice", info.ID))
	}
	registry.byID[info.ID] = info
}

func checkModuleID(id ModuleID) error {
	ns, name, ok := strings.Cut(string(id), ".")
	if !ok || ns == "" || name == "" {
		return fmt.Errorf("module id %q: want namespace.name", id)
	}
	return nil
}

// GetModule looks a module up by its full ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module ordered by ID.
func GetModules() []ModuleInfo {
	return selectModules(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace ordered by ID.
// "memory" yields memory.file and memory.sqlite.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return selectModules(func(id ModuleID) bool { return id.Namespace() == namespace })
}

// Namespaces lists the distinct namespaces of the registered modules.
func Namespaces() []string {
	registry.RLock()
	defer registry.RUnlock()
	seen := make(map[string]struct{})
	for id := range registry.byID {
		seen[id.Namespace()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func selectModules(keep func(ModuleID) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()
	ids := slices.Sorted(maps.Keys(registry.byID))
	out := make([]ModuleInfo, 0, len(ids))
	for _, id := range ids {
		if keep(id) {
			out = append(out, registry.byID[id])
		}
	}
	return out
}

// resetRegistry empties the registry between tests.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[ModuleID]ModuleInfo)
}
