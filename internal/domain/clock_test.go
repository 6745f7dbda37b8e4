package domain

import (
	"testing"
	"time"
)

func TestClockStrikeProgression(t *testing.T) {
	c := NewTurnClock(30*time.Second, []string{"a", "b"})

	if n := c.Strike("a"); n != 1 {
		t.Fatalf("first strike = %d, want 1", n)
	}
	if n := c.Strike("a"); n != 2 {
		t.Fatalf("second strike = %d, want 2", n)
	}
	if c.Forfeited("a") {
		t.Fatalf("two strikes must not forfeit")
	}
	if n := c.Strike("a"); n != 3 {
		t.Fatalf("third strike = %d, want 3", n)
	}
	if !c.Forfeited("a") {
		t.Fatalf("three strikes must forfeit")
	}
	if c.Forfeited("b") {
		t.Fatalf("strikes leaked across players")
	}
}

func TestClockMoveResetsStreak(t *testing.T) {
	c := NewTurnClock(30*time.Second, []string{"a", "b"})

	// Two misses, one good move, two more misses: never a forfeit.
	c.Strike("a")
	c.Strike("a")
	c.MoveAccepted("a")
	if c.Strikes("a") != 0 {
		t.Fatalf("streak after move = %d, want 0", c.Strikes("a"))
	}
	c.Strike("a")
	c.Strike("a")
	if c.Forfeited("a") {
		t.Fatalf("non-consecutive misses forfeited")
	}
}

func TestClockSnapshotRestore(t *testing.T) {
	c := NewTurnClock(time.Minute, []string{"a", "b"})
	c.Strike("b")
	c.Strike("b")

	snap := c.Snapshot()
	fresh := NewTurnClock(time.Minute, []string{"a", "b"})
	fresh.Restore(snap)
	if fresh.Strikes("b") != 2 || fresh.Strikes("a") != 0 {
		t.Fatalf("restore mismatch: a=%d b=%d", fresh.Strikes("a"), fresh.Strikes("b"))
	}
}
