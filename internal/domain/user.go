// Package domain holds the core entities shared across the bot.
package domain

import "time"

// User is one tracked Letterboxd handle within one guild.
//
// UpdatedAt is the delivery watermark: the publish timestamp boundary below
// which feed items are considered already delivered. It never moves backwards.
type User struct {
	Handle        string    `json:"handle"`
	GuildID       string    `json:"guild_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastCheckedAt time.Time `json:"last_checked_at,omitempty"`

	// Loaded is true once the record has been hydrated from storage or
	// freshly validated against Letterboxd. Never persisted.
	Loaded bool `json:"-"`
}

// Key returns the storage key of the record within the users namespace.
func (u *User) Key() string {
	return u.GuildID + ":" + u.Handle
}

// Stale reports whether the user is due for a poll: never checked, or last
// checked longer than threshold ago.
func (u *User) Stale(now time.Time, threshold time.Duration) bool {
	if u.LastCheckedAt.IsZero() {
		return true
	}
	return now.Sub(u.LastCheckedAt) > threshold
}
