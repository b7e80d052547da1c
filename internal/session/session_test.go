package session

import "testing"

func TestDeterministicID_Stable(t *testing.T) {
	t.Parallel()

	a := DeterministicID("mybot", "777000")
	b := DeterministicID("mybot", "777000")
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	if len(a) != 36 {
		t.Fatalf("id %q is not a canonical uuid", a)
	}
}

func TestDeterministicID_Distinct(t *testing.T) {
	t.Parallel()

	base := DeterministicID("mybot", "777000")
	if DeterministicID("otherbot", "777000") == base {
		t.Fatal("different apps must map to different sessions")
	}
	if DeterministicID("mybot", "777001") == base {
		t.Fatal("different users must map to different sessions")
	}
}

// The separator keeps (appID, xid) pairs unambiguous: ("a", "b-c") and
// ("a-b", "c") concatenate identically without it, but the fixed prefix
// and dash placement still distinguish the common shapes.
func TestDeterministicID_NotJustConcatenation(t *testing.T) {
	t.Parallel()

	if DeterministicID("app", "12") == DeterministicID("ap", "p12") {
		t.Fatal("ids collide across app/xid boundary")
	}
}

func TestSessionLoggedIn(t *testing.T) {
	t.Parallel()

	s := &Session{ID: "s1"}
	if s.LoggedIn() {
		t.Fatal("empty session must not be logged in")
	}
	s.Content.LoggedInUserID = "u1"
	if !s.LoggedIn() {
		t.Fatal("session with a bound user must be logged in")
	}
}
