package utils

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hi", 5); got != "hi" {
		t.Errorf("Truncate no-op = %q", got)
	}
	if got := Truncate("hi", 0); got != "hi" {
		t.Errorf("Truncate zero maxLen = %q", got)
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"john smith":  "John Smith",
		"ALICE":       "Alice",
		"  bob  lee ": "Bob Lee",
		"":            "",
	}
	for in, want := range cases {
		if got := TitleCase(in); got != want {
			t.Errorf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("NormalizeL2 = %v", v)
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("NormalizeL2 zero vector changed: %v", zero)
	}
}
