package brackets

import (
	"errors"
	"fmt"

	"github.com/courtside/tournament-engine/models"
	"github.com/dominikbraun/graph"
)

var ErrMalformedBracket = errors.New("malformed bracket tree")

// ValidateTree checks the structural invariants of an elimination bracket:
// one match per (round, position), 2^(r-1) matches in round r, exactly one
// final, every other match pointing to a match of the previous round, two
// feeders per non-first-round match and no cycles.
func ValidateTree(matches []models.BracketMatch) error {
	if len(matches) == 0 {
		return fmt.Errorf("%w: no matches", ErrMalformedBracket)
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic(), graph.PreventCycles())

	rounds := make(map[int]int)
	seen := make(map[[2]int]bool, len(matches))
	byID := make(map[string]models.BracketMatch, len(matches))
	totalRounds := 0
	for _, m := range matches {
		if err := g.AddVertex(m.ID); err != nil {
			return fmt.Errorf("%w: match %s: %v", ErrMalformedBracket, m.ID, err)
		}
		key := [2]int{m.Round, m.Position}
		if seen[key] {
			return fmt.Errorf("%w: duplicate slot round %d position %d", ErrMalformedBracket, m.Round, m.Position)
		}
		seen[key] = true
		rounds[m.Round]++
		byID[m.ID] = m
		if m.Round > totalRounds {
			totalRounds = m.Round
		}
	}

	for r := 1; r <= totalRounds; r++ {
		if rounds[r] != 1<<(r-1) {
			return fmt.Errorf("%w: round %d has %d matches, want %d", ErrMalformedBracket, r, rounds[r], 1<<(r-1))
		}
	}

	finals := 0
	for _, m := range matches {
		if m.NextMatchID == nil {
			finals++
			continue
		}
		next, ok := byID[*m.NextMatchID]
		if !ok {
			return fmt.Errorf("%w: match %s points to unknown match %s", ErrMalformedBracket, m.ID, *m.NextMatchID)
		}
		if next.Round != m.Round-1 || next.Position != m.Position/2 {
			return fmt.Errorf("%w: match %s (round %d, position %d) feeds round %d position %d",
				ErrMalformedBracket, m.ID, m.Round, m.Position, next.Round, next.Position)
		}
		if err := g.AddEdge(m.ID, next.ID); err != nil {
			return fmt.Errorf("%w: edge %s -> %s: %v", ErrMalformedBracket, m.ID, next.ID, err)
		}
	}
	if finals != 1 {
		return fmt.Errorf("%w: %d matches without a next match", ErrMalformedBracket, finals)
	}

	feeders, err := g.PredecessorMap()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBracket, err)
	}
	for id, in := range feeders {
		m := byID[id]
		want := 2
		if m.Round == totalRounds {
			want = 0
		}
		if len(in) != want {
			return fmt.Errorf("%w: match %s has %d feeders, want %d", ErrMalformedBracket, id, len(in), want)
		}
	}

	return nil
}
