package brackets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidScore = errors.New("invalid score")

// SetScore is one tennis/padel set as written in the score string.
type SetScore struct {
	GamesA int
	GamesB int
}

// ScoreTotals aggregates a parsed score from side A's point of view.
type ScoreTotals struct {
	SetsA  int
	SetsB  int
	GamesA int
	GamesB int
}

// ParseScore reads comma-separated "gamesA-gamesB" sets, e.g. "6-4, 7-5".
// Only the numeric shape is checked, not tennis scoring rules.
func ParseScore(score string) ([]SetScore, error) {
	if strings.TrimSpace(score) == "" {
		return nil, fmt.Errorf("%w: empty score", ErrInvalidScore)
	}

	parts := strings.Split(score, ",")
	sets := make([]SetScore, 0, len(parts))
	for _, part := range parts {
		games := strings.Split(strings.TrimSpace(part), "-")
		if len(games) != 2 {
			return nil, fmt.Errorf("%w: set %q is not in games-games form", ErrInvalidScore, part)
		}
		a, err := strconv.Atoi(strings.TrimSpace(games[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: set %q: %v", ErrInvalidScore, part, err)
		}
		b, err := strconv.Atoi(strings.TrimSpace(games[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: set %q: %v", ErrInvalidScore, part, err)
		}
		sets = append(sets, SetScore{GamesA: a, GamesB: b})
	}
	return sets, nil
}

// Totals counts sets won by each side (a level set counts for nobody)
// and sums the games.
func Totals(sets []SetScore) ScoreTotals {
	var t ScoreTotals
	for _, s := range sets {
		switch {
		case s.GamesA > s.GamesB:
			t.SetsA++
		case s.GamesB > s.GamesA:
			t.SetsB++
		}
		t.GamesA += s.GamesA
		t.GamesB += s.GamesB
	}
	return t
}
