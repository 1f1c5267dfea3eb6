package models

import "time"

// Poll is the live state embedded in a poll message. Voting is allowed
// until EndsAt; there is no explicit close operation.
type Poll struct {
	MessageID int          `db:"message_id" json:"message_id"`
	Question  string       `db:"question" json:"question"`
	EndsAt    time.Time    `db:"ends_at" json:"ends_at"`
	Options   []PollOption `json:"options"`
}

// PollOption holds the option text and the set of voter ids. A user id
// appears in at most one option's set across the whole poll.
type PollOption struct {
	Text  string `db:"text" json:"text"`
	Votes []int  `json:"votes"`
}

// Closed reports whether the voting window has passed at the given instant.
func (p Poll) Closed(now time.Time) bool {
	return now.After(p.EndsAt)
}
