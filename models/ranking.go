package models

import "time"

// PlayerRanking is the per-tenant ELO record of a player.
type PlayerRanking struct {
	UserID            string    `json:"user_id"`
	TenantID          string    `json:"tenant_id"`
	EloScore          int       `json:"elo_score"`
	MatchesPlayed     int       `json:"matches_played"`
	MatchesWon        int       `json:"matches_won"`
	TournamentMatches int       `json:"tournament_matches"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MatchOutcome is what the engine reports to the ranking collaborator.
type MatchOutcome struct {
	WinnerID     string `json:"winner_id"`
	LoserID      string `json:"loser_id"`
	TenantID     string `json:"tenant_id"`
	IsTournament bool   `json:"is_tournament"`
}
