package domain

import (
	"reflect"
	"testing"
)

func TestShuffleDeterministic(t *testing.T) {
	deck := make([]int, 52)
	for i := range deck {
		deck[i] = i
	}

	first := Shuffle(deck, "match-abc")
	second := Shuffle(deck, "match-abc")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different permutations:\n%v\n%v", first, second)
	}

	other := Shuffle(deck, "match-xyz")
	if reflect.DeepEqual(first, other) {
		t.Fatalf("distinct seeds produced identical permutations")
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	deck := []string{"a", "b", "c", "d", "e"}
	before := append([]string(nil), deck...)
	_ = Shuffle(deck, "seed")
	if !reflect.DeepEqual(deck, before) {
		t.Fatalf("input deck mutated: %v", deck)
	}
}

func TestShufflePermutes(t *testing.T) {
	deck := make([]int, 100)
	for i := range deck {
		deck[i] = i
	}
	out := Shuffle(deck, "permutation-check")
	seen := make(map[int]bool, len(out))
	for _, v := range out {
		if seen[v] {
			t.Fatalf("value %d appears twice", v)
		}
		seen[v] = true
	}
	if len(seen) != len(deck) {
		t.Fatalf("output lost elements: %d of %d", len(seen), len(deck))
	}
}

func TestShuffleSeedSpread(t *testing.T) {
	// Distinct seeds should land the head element in varied positions;
	// a fixed head would indicate the seed is ignored.
	deck := make([]int, 28)
	for i := range deck {
		deck[i] = i
	}
	heads := make(map[int]bool)
	seeds := []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8"}
	for _, s := range seeds {
		heads[Shuffle(deck, s)[0]] = true
	}
	if len(heads) < 3 {
		t.Fatalf("head element barely varies across seeds: %v", heads)
	}
}

func TestFirstPlayerStable(t *testing.T) {
	for _, n := range []int{2, 4} {
		a := FirstPlayer("match-1", n)
		b := FirstPlayer("match-1", n)
		if a != b {
			t.Fatalf("fairness roll unstable for n=%d: %d vs %d", n, a, b)
		}
		if a < 0 || a >= n {
			t.Fatalf("roll out of range for n=%d: %d", n, a)
		}
	}
}

func TestFirstPlayerIndependentOfDeal(t *testing.T) {
	// The roll must not simply reuse the deal stream.
	varies := false
	for _, seed := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		deal := Shuffle([]int{0, 1, 2, 3}, seed)
		if deal[0]%2 != FirstPlayer(seed, 2) {
			varies = true
		}
	}
	if !varies {
		t.Fatalf("fairness roll is a function of the deal head")
	}
}

func TestNewDealUsesMatchID(t *testing.T) {
	m := Match{ID: "m-77", Players: []string{"alice", "bob"}, Kind: KindDominoes, TurnTimeSeconds: 30}
	d := NewDeal(m)
	if d.Seed != "m-77" {
		t.Fatalf("deal seed = %q, want match id", d.Seed)
	}
	if got := d.FirstPlayerID(); got != "alice" && got != "bob" {
		t.Fatalf("first player %q not a participant", got)
	}
}
