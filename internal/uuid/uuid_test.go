package uuid

import "testing"

func TestNewProducesValidV4(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New()
		if !IsValid(id) {
			t.Fatalf("generated id %q is not a valid UUID v4", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "9b2b9c2e-6f4a-4d3c-8f1e-2a7b6c5d4e3f", true},
		{"wrong version", "9b2b9c2e-6f4a-1d3c-8f1e-2a7b6c5d4e3f", false},
		{"wrong variant", "9b2b9c2e-6f4a-4d3c-0f1e-2a7b6c5d4e3f", false},
		{"no dashes", "9b2b9c2e6f4a4d3c8f1e2a7b6c5d4e3f", false},
		{"empty", "", false},
		{"garbage", "not-a-uuid", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.input); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(New()); err != nil {
		t.Errorf("fresh id failed validation: %v", err)
	}
	if err := Validate("nope"); err == nil {
		t.Error("expected validation error")
	}
}
