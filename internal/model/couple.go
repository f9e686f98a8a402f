package model

import "time"

// Couple is the membership authority for a session: join and command
// authorization check against its two partners. The coordinator never
// mutates couples.
type Couple struct {
	ID         string    `db:"id" json:"id"`
	Partner1ID string    `db:"partner1_id" json:"partner1Id"`
	Partner2ID string    `db:"partner2_id" json:"partner2Id"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

func (c *Couple) HasPartner(participantID string) bool {
	return c.Partner1ID == participantID || c.Partner2ID == participantID
}

type Participant struct {
	ID          string    `db:"id" json:"id"`
	CoupleID    string    `db:"couple_id" json:"coupleId"`
	DisplayName string    `db:"display_name" json:"displayName"`
	TokenHash   string    `db:"token_hash" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
