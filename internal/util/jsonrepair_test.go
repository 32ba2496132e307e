package util

import "testing"

func TestRepairJSON(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		changed bool
	}{
		{`{"a":1}`, `{"a":1}`, false},
		{"```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"Sure! Here it is:\n```JSON\n{\"a\":1}\n```\nAnything else?", `{"a":1}`, true},
		{"garbage before {\"a\":1} trailing", `{"a":1}`, true},
		{"prefix [1,2,3] suffix", `[1,2,3]`, true},
		{`[{"a":1},{"b":2}] done`, `[{"a":1},{"b":2}]`, true},
		{"no json here", "no json here", false},
	}
	for i, c := range cases {
		got, changed := RepairJSON(c.in)
		if got != c.want {
			t.Fatalf("case %d: want %q got %q", i, c.want, got)
		}
		if changed != c.changed {
			t.Fatalf("case %d: changed = %v, want %v", i, changed, c.changed)
		}
	}
}
