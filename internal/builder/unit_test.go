package builder

import "testing"

func TestUnitTransitions(t *testing.T) {
	tests := []struct {
		note  string
		path  []State
		valid bool
	}{
		{note: "success", path: []State{StateGraphConstructing, StateEmitting, StateComplete}, valid: true},
		{note: "fail while constructing", path: []State{StateGraphConstructing, StateFailed}, valid: true},
		{note: "fail before start", path: []State{StateFailed}, valid: true},
		{note: "skip graph construction", path: []State{StateEmitting}},
		{note: "complete is terminal", path: []State{StateGraphConstructing, StateEmitting, StateComplete, StateFailed}},
		{note: "failed is terminal", path: []State{StateFailed, StateGraphConstructing}},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			u := &Unit{ID: "u"}
			var err error
			for _, s := range tc.path {
				if err = u.transition(s); err != nil {
					break
				}
			}
			if tc.valid != (err == nil) {
				t.Fatalf("expected valid=%v, got %v", tc.valid, err)
			}
		})
	}
}
