package models

// SeededParticipant is a category participant with the rating used to seed it.
type SeededParticipant struct {
	UserID string `json:"user_id"`
	Elo    int    `json:"elo"`
}
