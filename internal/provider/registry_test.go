package provider

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func stubFactory() Factory {
	return FactoryFunc(func(ctx context.Context, cfg Config) (Session, error) {
		return nil, nil
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register("test", stubFactory())

	if _, err := registry.Get("test"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := NewRegistry()
	registry.Register("sim", stubFactory())

	_, err := registry.Get("nonexistent")
	if err == nil {
		t.Fatal("Expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "nonexistent") {
		t.Errorf("Error should name the missing driver, got %q", err)
	}
	if !strings.Contains(err.Error(), "sim") {
		t.Errorf("Error should list available drivers, got %q", err)
	}
}

func TestRegistry_DriversSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register("zeta", stubFactory())
	registry.Register("alpha", stubFactory())
	registry.Register("mid", stubFactory())

	drivers := registry.Drivers()
	want := []string{"alpha", "mid", "zeta"}
	if len(drivers) != len(want) {
		t.Fatalf("Expected %d drivers, got %d", len(want), len(drivers))
	}
	for i, name := range want {
		if drivers[i] != name {
			t.Errorf("drivers[%d] = %q, want %q", i, drivers[i], name)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	if _, err := registry.Get("sim"); err != nil {
		t.Fatalf("Default registry should include the sim driver: %v", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			name := fmt.Sprintf("d%d", n)
			registry.Register(name, stubFactory())
			registry.Drivers()
			registry.Get(name)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := len(registry.Drivers()); got != 10 {
		t.Errorf("Expected 10 drivers, got %d", got)
	}
}
