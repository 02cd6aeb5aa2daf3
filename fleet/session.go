package fleet

import "time"

// Language is the display language of exported reports and messages.
type Language string

const (
	LangFR Language = "fr"
	LangEN Language = "en"
)

func (l Language) Valid() bool { return l == LangFR || l == LangEN }

// Session is a logged-in user. It is created at login and deleted at logout;
// nothing about the current user lives outside it.
type Session struct {
	ID        SessionID `json:"id"`
	UserID    UserID    `json:"user_id"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
