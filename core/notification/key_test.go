package notification

import (
	"testing"
	"time"
)

func TestBuildKey(t *testing.T) {
	due := time.Date(2021, 6, 17, 14, 30, 0, 0, time.UTC)

	t.Run("format", func(t *testing.T) {
		got := BuildKey(EntityProject, "p1", KindDueSoon, due)
		want := "due_soon:project:p1:2021061714"
		if got != want {
			t.Errorf("BuildKey() = %q, want %q", got, want)
		}
	})

	t.Run("stable across trigger times", func(t *testing.T) {
		// the bucket comes from the due timestamp, not from when the trigger
		// runs: any number of sweeps against the same due date collapse to one key
		a := BuildKey(EntityProject, "p1", KindDueSoon, due)
		b := BuildKey(EntityProject, "p1", KindDueSoon, due)
		if a != b {
			t.Errorf("keys differ: %q vs %q", a, b)
		}
	})

	t.Run("kind separates keys", func(t *testing.T) {
		dueSoon := BuildKey(EntityTask, "t1", KindDueSoon, due)
		overdue := BuildKey(EntityTask, "t1", KindOverdue, due)
		if dueSoon == overdue {
			t.Errorf("due-soon and overdue keys collide: %q", dueSoon)
		}
	})

	t.Run("entity separates keys", func(t *testing.T) {
		p := BuildKey(EntityProject, "x", KindDueSoon, due)
		tk := BuildKey(EntityTask, "x", KindDueSoon, due)
		if p == tk {
			t.Errorf("project and task keys collide: %q", p)
		}
	})

	t.Run("new due date yields new key", func(t *testing.T) {
		orig := BuildKey(EntityProject, "p1", KindDueSoon, due)
		moved := BuildKey(EntityProject, "p1", KindDueSoon, due.Add(72*time.Hour))
		if orig == moved {
			t.Errorf("moved due date reuses key %q", orig)
		}
	})

	t.Run("non-UTC input normalized", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		got := BuildKey(EntityProject, "p1", KindDueSoon, due.In(loc))
		want := BuildKey(EntityProject, "p1", KindDueSoon, due)
		if got != want {
			t.Errorf("BuildKey() = %q, want %q", got, want)
		}
	})
}
