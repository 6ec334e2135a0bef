package models

import "time"

// Principal is a player account that can log in with either its username or
// its QQ number.
type Principal struct {
	ID            int64
	Username      string  // primary identifier, unique
	QQ            *string // secondary identifier, unique when present
	Nickname      string
	PasswordHash  string
	IsActive      bool
	IsStaff       bool
	IsWhitelisted bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QQValue returns the QQ number or an empty string when none is linked.
func (p *Principal) QQValue() string {
	if p == nil || p.QQ == nil {
		return ""
	}
	return *p.QQ
}
