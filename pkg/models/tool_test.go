package models

import "testing"

func TestToolCall_Strings(t *testing.T) {
	tests := []struct {
		name string
		arg  any
		want []string
	}{
		{"slice", []string{"a", "b"}, []string{"a", "b"}},
		{"json array", []any{"a", 3.0, "", "b"}, []string{"a", "b"}},
		{"single string", "a", []string{"a"}},
		{"empty string", "", nil},
		{"missing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ToolCall{Args: map[string]any{}}
			if tt.arg != nil {
				c.Args["q"] = tt.arg
			}
			got := c.Strings("q")
			if len(got) != len(tt.want) {
				t.Fatalf("Strings() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Strings()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestToolCall_Int(t *testing.T) {
	tests := []struct {
		name   string
		arg    any
		want   int
		wantOK bool
	}{
		{"json number", 7.0, 7, true},
		{"int", 3, 3, true},
		{"numeric string", "12", 12, true},
		{"bad string", "many", 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ToolCall{Args: map[string]any{"n": tt.arg}}
			got, ok := c.Int("n")
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("Int() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToolResult_Message(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "search"}
	r := ErrorResultFor(call, "Error: nope")

	if !r.IsError {
		t.Error("expected IsError")
	}
	m := r.Message()
	if m.Role != RoleTool || m.ToolCallID != "c1" || m.Name != "search" || m.Content != "Error: nope" {
		t.Errorf("Message() = %+v", m)
	}
}
