package engine

import "testing"

func TestDeriveSeed(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"23f1002487@ds.study.iitm.ac.in", "231002"},
		{"abc@example.com", "default"},
		{"user42@example.com", "42"},
		{"", "default"},
	}
	for _, tt := range tests {
		if got := DeriveSeed(tt.email); got != tt.want {
			t.Errorf("DeriveSeed(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestSubstituteSeed(t *testing.T) {
	if got := SubstituteSeed("no placeholder here", "231002"); got != "no placeholder here" {
		t.Errorf("SubstituteSeed without placeholder changed text: %q", got)
	}

	in := "Title ${seed} and again ${seed}"
	once := SubstituteSeed(in, "231002")
	if once != "Title 231002 and again 231002" {
		t.Errorf("SubstituteSeed = %q", once)
	}
	if twice := SubstituteSeed(once, "231002"); twice != once {
		t.Errorf("second substitution = %q, want %q", twice, once)
	}
	if again := SubstituteSeed(in, "231002"); again != once {
		t.Errorf("substitution not deterministic: %q vs %q", again, once)
	}
}
