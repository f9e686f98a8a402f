package model

import (
	"time"
)

type Note struct {
	ID           string      `db:"id" json:"id"`
	SessionID    string      `db:"session_id" json:"sessionId"`
	CoupleID     string      `db:"couple_id" json:"coupleId"`
	CategoryID   *string     `db:"category_id" json:"categoryId,omitempty"`
	AuthorID     string      `db:"author_id" json:"authorId"`
	Content      string      `db:"content" json:"content"`
	Privacy      NotePrivacy `db:"privacy" json:"privacy"`
	Version      int         `db:"version" json:"version"`
	LockedBy     *string     `db:"locked_by" json:"lockedBy,omitempty"`
	LockedAt     *time.Time  `db:"locked_at" json:"lockedAt,omitempty"`
	LastEditedBy *string     `db:"last_edited_by" json:"lastEditedBy,omitempty"`
	Synchronized bool        `db:"synchronized" json:"synchronized"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// LockedByOther reports whether the note is locked by someone other than
// participantID.
func (n *Note) LockedByOther(participantID string) bool {
	return n.LockedBy != nil && *n.LockedBy != participantID
}

// LockExpired reports whether the note's lock is older than ttl at now.
func (n *Note) LockExpired(now time.Time, ttl time.Duration) bool {
	return n.LockedAt != nil && now.Sub(*n.LockedAt) >= ttl
}

// VisibleTo reports whether participantID may read the note. Private and
// draft notes are visible to their author only.
func (n *Note) VisibleTo(participantID string) bool {
	if n.Privacy == NotePrivacyShared {
		return true
	}
	return n.AuthorID == participantID
}

type CreateNoteParams struct {
	SessionID    string
	CoupleID     string
	CategoryID   *string
	AuthorID     string
	Content      string
	Privacy      NotePrivacy
	Synchronized bool
}
