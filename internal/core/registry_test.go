package core

import (
	"slices"
	"strings"
	"testing"
)

func mustPanic(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q", want)
		}
		if msg, _ := r.(string); !strings.Contains(msg, want) {
			t.Fatalf("panic = %v, want %q", r, want)
		}
	}()
	fn()
}

func TestRegisterModule_RejectsBadIDs(t *testing.T) {
	t.Cleanup(resetRegistry)

	for _, id := range []ModuleID{"", "memory", ".file", "memory."} {
		mustPanic(t, "namespace.name", func() {
			RegisterModule(&trackingModule{id: id})
		})
	}
	if len(GetModules()) != 0 {
		t.Error("rejected modules were registered")
	}
}

func TestRegisterModule_Duplicate(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&trackingModule{id: "test.dup"})
	mustPanic(t, "registered twice", func() {
		RegisterModule(&trackingModule{id: "test.dup"})
	})
}

func TestRegistry_Namespaces(t *testing.T) {
	t.Cleanup(resetRegistry)

	for _, id := range []ModuleID{"memory.sqlite", "chain.solana", "memory.file", "gateway.http"} {
		RegisterModule(&trackingModule{id: id})
	}

	if got, want := Namespaces(), []string{"chain", "gateway", "memory"}; !slices.Equal(got, want) {
		t.Errorf("Namespaces() = %v, want %v", got, want)
	}

	var ids []ModuleID
	for _, info := range GetModulesByNamespace("memory") {
		ids = append(ids, info.ID)
	}
	if want := []ModuleID{"memory.file", "memory.sqlite"}; !slices.Equal(ids, want) {
		t.Errorf("memory modules = %v, want %v", ids, want)
	}
	if got := GetModulesByNamespace("mem"); len(got) != 0 {
		t.Errorf("prefix match leaked: %v", got)
	}

	all := GetModules()
	if len(all) != 4 || all[0].ID != "chain.solana" || all[3].ID != "memory.sqlite" {
		t.Errorf("GetModules() = %v", all)
	}
	if _, ok := GetModule("gateway.http"); !ok {
		t.Error("GetModule(gateway.http) not found")
	}
}
