package store

import "testing"

// --- joinStrings Tests ---

func TestJoinStrings_Empty(t *testing.T) {
	result := joinStrings([]string{}, ", ")
	if result != "" {
		t.Errorf("expected empty string for empty slice, got %q", result)
	}
}

func TestJoinStrings_Single(t *testing.T) {
	result := joinStrings([]string{"one"}, ", ")
	if result != "one" {
		t.Errorf("expected 'one', got %q", result)
	}
}

func TestJoinStrings_Multiple(t *testing.T) {
	result := joinStrings([]string{"a", "b", "c"}, ", ")
	if result != "a, b, c" {
		t.Errorf("expected 'a, b, c', got %q", result)
	}
}

// --- buildUpdateExpression Tests ---

func TestBuildUpdateExpression(t *testing.T) {
	tests := []struct {
		name     string
		set      []string
		remove   []string
		expected string
	}{
		{
			name:     "set only",
			set:      []string{"#f0 = :v0", "#f1 = :v1"},
			expected: "SET #f0 = :v0, #f1 = :v1",
		},
		{
			name:     "remove only",
			remove:   []string{"#f0", "#f1"},
			expected: "REMOVE #f0, #f1",
		},
		{
			name:     "set and remove",
			set:      []string{"#f0 = :v0"},
			remove:   []string{"#f1"},
			expected: "SET #f0 = :v0 REMOVE #f1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := buildUpdateExpression(tt.set, tt.remove)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

// --- FieldOp Tests ---

func TestFieldOp_ZeroValueIsUnchanged(t *testing.T) {
	var op FieldOp
	if op.kind != opUnchanged {
		t.Errorf("expected zero FieldOp to be unchanged, got kind %d", op.kind)
	}
}

func TestFieldOp_Set(t *testing.T) {
	op := Set("dark")
	if op.kind != opSet {
		t.Errorf("expected opSet, got %d", op.kind)
	}
	if op.err != nil {
		t.Errorf("unexpected error: %v", op.err)
	}
}

func TestFieldOp_Remove(t *testing.T) {
	op := Remove()
	if op.kind != opRemove {
		t.Errorf("expected opRemove, got %d", op.kind)
	}
}

func TestConfigValidate_Defaults(t *testing.T) {
	var cfg Config
	cfg.validate()
	if cfg.TableName != "chats" {
		t.Errorf("expected TableName 'chats', got %q", cfg.TableName)
	}
	if cfg.IndexName != "gsi1" {
		t.Errorf("expected IndexName 'gsi1', got %q", cfg.IndexName)
	}
}
