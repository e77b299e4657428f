package bitset

import (
	"math/rand"
	"testing"
)

func fromString(s string) Bits {
	b := make(Bits, len(s))
	for i, c := range s {
		b[i] = c == '1'
	}
	return b
}

func TestMajority_Odd(t *testing.T) {
	if Majority(fromString("11010")) != 1 {
		t.Fatal("three ones out of five should give majority 1")
	}
	if Majority(fromString("00110")) != 0 {
		t.Fatal("two ones out of five should give majority 0")
	}
}

func TestHamming(t *testing.T) {
	if d := Hamming(fromString("1010"), fromString("1010")); d != 0 {
		t.Fatalf("identical sequences: got %d", d)
	}
	if d := Hamming(fromString("1010"), fromString("0101")); d != 4 {
		t.Fatalf("complement sequences: got %d", d)
	}
	if d := Hamming(fromString("1100"), fromString("1000")); d != 1 {
		t.Fatalf("one differing bit: got %d", d)
	}
}

func TestContains(t *testing.T) {
	hay := fromString("1101001")
	if !Contains(hay, fromString("0100")) {
		t.Fatal("0100 occurs at offset 2")
	}
	if Contains(hay, fromString("0000")) {
		t.Fatal("0000 does not occur")
	}
	if Contains(fromString("10"), fromString("101")) {
		t.Fatal("needle longer than hay can never match")
	}
	if !Contains(hay, Bits{}) {
		t.Fatal("empty needle matches trivially")
	}
}

func TestBestMatch_TieBreaksToLowestOffset(t *testing.T) {
	// Both offsets 0 and 2 of "0101" are distance 1 from "11"; expect 0... but
	// offset 1 ("10") is distance 1 too. Construct an unambiguous case instead:
	// "1100" vs needle "10": offset 1 matches exactly.
	off, dist := BestMatch(fromString("1100"), fromString("10"))
	if off != 1 || dist != 0 {
		t.Fatalf("got off=%d dist=%d, want exact match at 1", off, dist)
	}

	// All windows of "0000" are distance 1 from "01" — lowest offset wins.
	off, dist = BestMatch(fromString("0000"), fromString("01"))
	if off != 0 || dist != 1 {
		t.Fatalf("got off=%d dist=%d, want off=0 dist=1", off, dist)
	}
}

func TestCrossover_BitsComeFromParents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := fromString("11111")
	b := fromString("00000")
	child := Crossover(rng, a, b)
	if len(child) != 5 {
		t.Fatalf("child length %d", len(child))
	}
	// With these parents every child bit is valid; crossover of identical
	// parents must reproduce them exactly.
	same := Crossover(rng, a, a.Clone())
	if !Equal(same, a) {
		t.Fatal("crossover of identical parents must equal the parent")
	}
}

func TestRandomLengthAndClone(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := Random(rng, 11)
	if len(b) != 11 {
		t.Fatalf("length %d", len(b))
	}
	c := b.Clone()
	c[0] = !c[0]
	if Equal(b, c) {
		t.Fatal("clone must be independent of the original")
	}
}
