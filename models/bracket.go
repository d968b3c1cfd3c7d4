package models

import "time"

type BracketStatus string

const (
	BracketStatusPending    BracketStatus = "PENDING"
	BracketStatusInProgress BracketStatus = "IN_PROGRESS"
	BracketStatusCompleted  BracketStatus = "COMPLETED"
)

// BracketMatch is one node of the elimination tree. Round 1 is the final,
// higher rounds are earlier. Position is 0-based within the round.
// A nil player slot is either a BYE (first round) or a winner not yet known.
type BracketMatch struct {
	ID          string     `json:"id"`
	Round       int        `json:"round"`
	Position    int        `json:"position"`
	Player1ID   *string    `json:"player1_id,omitempty"`
	Player2ID   *string    `json:"player2_id,omitempty"`
	WinnerID    *string    `json:"winner_id,omitempty"`
	Score       *string    `json:"score,omitempty"`
	MatchDate   *time.Time `json:"match_date,omitempty"`
	NextMatchID *string    `json:"next_match_id,omitempty"`
}

func (m *BracketMatch) PlayerCount() int {
	n := 0
	if m.Player1ID != nil {
		n++
	}
	if m.Player2ID != nil {
		n++
	}
	return n
}

func (m *BracketMatch) HasWinner() bool {
	return m.WinnerID != nil
}

func (m *BracketMatch) HasResult() bool {
	return m.WinnerID != nil || (m.Score != nil && *m.Score != "")
}

func (m *BracketMatch) IsPlayer(userID string) bool {
	return (m.Player1ID != nil && *m.Player1ID == userID) ||
		(m.Player2ID != nil && *m.Player2ID == userID)
}

// Opponent returns the other player of the match, if any.
func (m *BracketMatch) Opponent(userID string) *string {
	if m.Player1ID != nil && *m.Player1ID == userID {
		return m.Player2ID
	}
	if m.Player2ID != nil && *m.Player2ID == userID {
		return m.Player1ID
	}
	return nil
}

// PlaceWinner puts playerID into the slot the winner of the match at
// sourcePosition feeds: even positions fill player1, odd ones player2.
func (m *BracketMatch) PlaceWinner(sourcePosition int, playerID string) {
	id := playerID
	if sourcePosition%2 == 0 {
		m.Player1ID = &id
	} else {
		m.Player2ID = &id
	}
}

type Bracket struct {
	ID           string         `json:"id"`
	TournamentID string         `json:"tournament_id"`
	CategoryID   string         `json:"category_id"`
	Matches      []BracketMatch `json:"matches"`
	Status       BracketStatus  `json:"status"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TotalRounds is the number of rounds, i.e. the round number of the first round.
func (b *Bracket) TotalRounds() int {
	total := 0
	for _, m := range b.Matches {
		if m.Round > total {
			total = m.Round
		}
	}
	return total
}

// MatchIndex maps match ids to their index in Matches.
func (b *Bracket) MatchIndex() map[string]int {
	index := make(map[string]int, len(b.Matches))
	for i, m := range b.Matches {
		index[m.ID] = i
	}
	return index
}

func (b *Bracket) Match(matchID string) *BracketMatch {
	for i := range b.Matches {
		if b.Matches[i].ID == matchID {
			return &b.Matches[i]
		}
	}
	return nil
}

// Final returns the match without a next match.
func (b *Bracket) Final() *BracketMatch {
	for i := range b.Matches {
		if b.Matches[i].NextMatchID == nil {
			return &b.Matches[i]
		}
	}
	return nil
}

// IsTrueBye reports whether m is a first-round match missing a player.
func (b *Bracket) IsTrueBye(m *BracketMatch) bool {
	return m.Round == b.TotalRounds() && m.PlayerCount() < 2
}

// IsComplete is true when every match has a winner or is a first-round bye.
func (b *Bracket) IsComplete() bool {
	if len(b.Matches) == 0 {
		return false
	}
	for i := range b.Matches {
		m := &b.Matches[i]
		if !m.HasWinner() && !b.IsTrueBye(m) {
			return false
		}
	}
	return true
}

func (b *Bracket) HasAnyResult() bool {
	for i := range b.Matches {
		m := &b.Matches[i]
		if b.IsTrueBye(m) {
			// победитель BYE проставляется генератором, это не результат
			continue
		}
		if m.HasResult() {
			return true
		}
	}
	return false
}
