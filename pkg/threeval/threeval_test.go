package threeval

import "testing"

// TestAndTruthTable exhaustively checks all nine entries of Kleene AND,
// per spec.md's Design Notes requirement to cover every combination.
func TestAndTruthTable(t *testing.T) {
	cases := []struct {
		a, b, want Bool
	}{
		{True, True, True},
		{True, False, False},
		{True, Void, Void},
		{False, True, False},
		{False, False, False},
		{False, Void, False},
		{Void, True, Void},
		{Void, False, False},
		{Void, Void, Void},
	}
	for _, c := range cases {
		if got := And(c.a, c.b); got != c.want {
			t.Errorf("And(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestOrTruthTable(t *testing.T) {
	cases := []struct {
		a, b, want Bool
	}{
		{True, True, True},
		{True, False, True},
		{True, Void, True},
		{False, True, True},
		{False, False, False},
		{False, Void, Void},
		{Void, True, True},
		{Void, False, Void},
		{Void, Void, Void},
	}
	for _, c := range cases {
		if got := Or(c.a, c.b); got != c.want {
			t.Errorf("Or(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestNot(t *testing.T) {
	if Not(True) != False {
		t.Error("Not(True) != False")
	}
	if Not(False) != True {
		t.Error("Not(False) != True")
	}
	if Not(Void) != Void {
		t.Error("Not(Void) != Void")
	}
}

func TestFromToBool(t *testing.T) {
	if FromBool(true) != True || FromBool(false) != False {
		t.Fatal("FromBool mismatch")
	}
	if v, ok := ToBool(Void); ok || v {
		t.Fatal("ToBool(Void) should be ok=false")
	}
	if v, ok := ToBool(True); !ok || !v {
		t.Fatal("ToBool(True) should be true,true")
	}
}
