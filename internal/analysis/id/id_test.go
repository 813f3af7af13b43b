package id

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

var format = regexp.MustCompile(`^run-\d+-[0-9a-f]{8}$`)

func TestGenerate(t *testing.T) {
	id := Generate()

	if !strings.HasPrefix(id, "run-") {
		t.Errorf("expected ID to start with 'run-', got %s", id)
	}
	if !format.MatchString(id) {
		t.Errorf("unexpected ID format: %s", id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Timestamp(t *testing.T) {
	id := generateAt(time.Unix(1701432000, 0))
	if !strings.HasPrefix(id, "run-1701432000-") {
		t.Errorf("expected timestamp prefix, got %s", id)
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
