package domain

import (
	"testing"
	"time"
)

func testTime() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestMatchValidate(t *testing.T) {
	tests := []struct {
		name  string
		match Match
		want  error
	}{
		{
			name:  "ok",
			match: Match{ID: "m1", Players: []string{"a", "b"}},
			want:  nil,
		},
		{
			name:  "missing id",
			match: Match{Players: []string{"a", "b"}},
			want:  ErrNoMatchID,
		},
		{
			name:  "one player",
			match: Match{ID: "m1", Players: []string{"a"}},
			want:  ErrTooFewPlayers,
		},
		{
			name:  "five players",
			match: Match{ID: "m1", Players: []string{"a", "b", "c", "d", "e"}},
			want:  ErrTooManyPlayers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match.Validate(); got != tt.want {
				t.Fatalf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchRequiresDurableLog(t *testing.T) {
	casual := Match{ID: "m", Players: []string{"a", "b"}, Mode: ModeCasual}
	if casual.RequiresDurableLog() {
		t.Fatalf("casual unstaked match should not require the log")
	}
	ranked := Match{ID: "m", Players: []string{"a", "b"}, Mode: ModeRanked}
	if !ranked.RequiresDurableLog() {
		t.Fatalf("ranked match must require the log")
	}
	staked := Match{ID: "m", Players: []string{"a", "b"}, Mode: ModeCasual, Stake: 50}
	if !staked.RequiresDurableLog() {
		t.Fatalf("staked match must require the log")
	}
}

func TestMatchNextAfter(t *testing.T) {
	m := Match{ID: "m", Players: []string{"a", "b", "c", "d"}}

	if got := m.NextAfter("b", nil); got != "c" {
		t.Fatalf("NextAfter(b) = %q, want c", got)
	}
	if got := m.NextAfter("d", nil); got != "a" {
		t.Fatalf("NextAfter(d) = %q, want a (wraparound)", got)
	}
	elim := map[string]bool{"c": true}
	if got := m.NextAfter("b", elim); got != "d" {
		t.Fatalf("NextAfter(b) skipping c = %q, want d", got)
	}
}

func TestMoveSyntheticRoundTrip(t *testing.T) {
	mv := NewTimeoutMove("m1", 4, "a", testTime())
	if mv.Synthetic() != SyntheticTimeout {
		t.Fatalf("timeout move not recognized: %q", mv.Synthetic())
	}
	re := NewResignMove("m1", 5, "b", testTime())
	if re.Synthetic() != SyntheticResign {
		t.Fatalf("resign move not recognized: %q", re.Synthetic())
	}
	plain := Move{MatchID: "m1", Seq: 6, Player: "a", Payload: []byte(`{"action":"pass"}`)}
	if plain.Synthetic() != "" {
		t.Fatalf("plain move misread as synthetic")
	}
}
