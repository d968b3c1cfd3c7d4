package models

import "time"

type GroupStageStatus string

const (
	GroupStageStatusDraft      GroupStageStatus = "DRAFT"
	GroupStageStatusLocked     GroupStageStatus = "LOCKED"
	GroupStageStatusInProgress GroupStageStatus = "IN_PROGRESS"
	GroupStageStatusCompleted  GroupStageStatus = "COMPLETED"
)

type GroupStageMatch struct {
	ID        string     `json:"id"`
	GroupID   string     `json:"group_id"`
	Round     int        `json:"round"` // только для отображения
	Player1ID string     `json:"player1_id"`
	Player2ID string     `json:"player2_id"`
	WinnerID  *string    `json:"winner_id,omitempty"`
	Score     *string    `json:"score,omitempty"`
	MatchDate *time.Time `json:"match_date,omitempty"`
}

func (m *GroupStageMatch) IsPlayer(userID string) bool {
	return m.Player1ID == userID || m.Player2ID == userID
}

func (m *GroupStageMatch) HasResult() bool {
	return m.WinnerID != nil || (m.Score != nil && *m.Score != "")
}

type GroupStanding struct {
	PlayerID             string `json:"player_id"`
	Position             int    `json:"position"`
	MatchesPlayed        int    `json:"matches_played"`
	Wins                 int    `json:"wins"`
	Draws                int    `json:"draws"`
	Losses               int    `json:"losses"`
	Points               int    `json:"points"`
	SetsWon              int    `json:"sets_won"`
	SetsLost             int    `json:"sets_lost"`
	GamesWon             int    `json:"games_won"`
	GamesLost            int    `json:"games_lost"`
	SetDifference        int    `json:"set_difference"`
	GameDifference       int    `json:"game_difference"`
	QualifiedForKnockout bool   `json:"qualified_for_knockout"`
}

// RefreshDifferences recomputes the derived set and game differences.
func (s *GroupStanding) RefreshDifferences() {
	s.SetDifference = s.SetsWon - s.SetsLost
	s.GameDifference = s.GamesWon - s.GamesLost
}

type Group struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Seed         int               `json:"seed"`
	Participants []string          `json:"participants"`
	Matches      []GroupStageMatch `json:"matches"`
	Standings    []GroupStanding   `json:"standings"`
}

func (g *Group) HasParticipant(userID string) bool {
	for _, p := range g.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (g *Group) Match(matchID string) *GroupStageMatch {
	for i := range g.Matches {
		if g.Matches[i].ID == matchID {
			return &g.Matches[i]
		}
	}
	return nil
}

func (g *Group) Standing(playerID string) *GroupStanding {
	for i := range g.Standings {
		if g.Standings[i].PlayerID == playerID {
			return &g.Standings[i]
		}
	}
	return nil
}

// IsComplete is true when the group has fixtures and all of them are decided.
func (g *Group) IsComplete() bool {
	if len(g.Matches) == 0 {
		return false
	}
	for _, m := range g.Matches {
		if m.WinnerID == nil {
			return false
		}
	}
	return true
}

type GroupStage struct {
	ID           string           `json:"id"`
	TournamentID string           `json:"tournament_id"`
	CategoryID   string           `json:"category_id"`
	Groups       []Group          `json:"groups"`
	Status       GroupStageStatus `json:"status"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (gs *GroupStage) Group(groupID string) *Group {
	for i := range gs.Groups {
		if gs.Groups[i].ID == groupID {
			return &gs.Groups[i]
		}
	}
	return nil
}

// GroupOfMatch returns the group that holds matchID.
func (gs *GroupStage) GroupOfMatch(matchID string) *Group {
	for i := range gs.Groups {
		if gs.Groups[i].Match(matchID) != nil {
			return &gs.Groups[i]
		}
	}
	return nil
}

func (gs *GroupStage) AllGroupsComplete() bool {
	if len(gs.Groups) == 0 {
		return false
	}
	for i := range gs.Groups {
		if !gs.Groups[i].IsComplete() {
			return false
		}
	}
	return true
}

func (gs *GroupStage) HasAnyResult() bool {
	for _, g := range gs.Groups {
		for i := range g.Matches {
			if g.Matches[i].HasResult() {
				return true
			}
		}
	}
	return false
}
