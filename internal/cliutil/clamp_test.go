package cliutil

import "testing"

func TestClampBoundsIntegers(t *testing.T) {
	cases := []struct{ val, min, max, want int }{
		{5, 1, 10, 5},
		{-5, 1, 10, 1},
		{50, 1, 10, 10},
		{1, 1, 10, 1},
		{10, 1, 10, 10},
	}
	for _, c := range cases {
		if got := Clamp(c.val, c.min, c.max); got != c.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", c.val, c.min, c.max, got, c.want)
		}
	}
}

func TestClampBoundsFloats(t *testing.T) {
	if got := Clamp(3.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("Clamp(3.5, 0, 1) = %v, want 1.0", got)
	}
}

func TestClampBoundsStrings(t *testing.T) {
	if got := Clamp("m", "a", "z"); got != "m" {
		t.Errorf("Clamp(%q, a, z) = %q, want m", "m", got)
	}
	if got := Clamp("zzz", "a", "m"); got != "m" {
		t.Errorf("expected out-of-range string clamped to max, got %q", got)
	}
}
