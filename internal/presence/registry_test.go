package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	registry := NewRegistry()

	if _, exists := registry.Lookup("c1"); exists {
		t.Error("Lookup on empty registry should report absent")
	}

	registry.Register("c1", "ada")
	name, exists := registry.Lookup("c1")
	if !exists || name != "ada" {
		t.Errorf("Expected ada, got %q (exists=%v)", name, exists)
	}
}

func TestRegistry_ReRegistrationOverwrites(t *testing.T) {
	registry := NewRegistry()

	registry.Register("c1", "ada")
	registry.Register("c1", "grace")

	name, _ := registry.Lookup("c1")
	if name != "grace" {
		t.Errorf("Expected re-registration to overwrite, got %q", name)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 entry, got %d", registry.Count())
	}
}

func TestRegistry_DuplicateDisplayNamesAllowed(t *testing.T) {
	registry := NewRegistry()

	registry.Register("c1", "ada")
	registry.Register("c2", "ada")

	if registry.Count() != 2 {
		t.Errorf("Expected 2 entries for distinct connections, got %d", registry.Count())
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	registry.Register("c1", "ada")
	registry.Unregister("c1")
	registry.Unregister("c1")
	registry.Unregister("never-registered")

	if _, exists := registry.Lookup("c1"); exists {
		t.Error("Connection should be absent after unregister")
	}
	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d", registry.Count())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			registry.Register(id, "user")
			registry.Lookup(id)
			if i%2 == 0 {
				registry.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	if registry.Count() != 25 {
		t.Errorf("Expected 25 remaining entries, got %d", registry.Count())
	}
}
