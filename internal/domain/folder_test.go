package domain

import "testing"

func TestDeriveFolderName(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "alice"},
		{"a.b@x.com", "a_b"},
		{"first.middle.last@corp.io", "first_middle_last"},
		{"noat", "noat"},
		{"trailing.@x.com", "trailing_"},
		{"@x.com", ""},
	}
	for _, tc := range cases {
		if got := DeriveFolderName(tc.email); got != tc.want {
			t.Errorf("DeriveFolderName(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

// Two distinct addresses can map to the same directory name. The mapping
// is accepted as collision-prone; this test pins that down so nobody
// "fixes" it without noticing the reconciler depends on it.
func TestDeriveFolderNameCollision(t *testing.T) {
	a := DeriveFolderName("a.b@one.com")
	b := DeriveFolderName("a_b@two.com")
	if a != b {
		t.Fatalf("expected colliding names, got %q and %q", a, b)
	}
}
