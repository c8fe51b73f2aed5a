package model

import (
	"time"

	"roast-tracker/internal/roast"
)

// User is an account on the backend. Only the auth layer reads PasswordHash.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:320;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// Preferences mirrors the client Settings on the backend profile.
type Preferences struct {
	DefaultRoastLevel string `json:"default_roast_level"`
	Notifications     bool   `json:"notifications"`
	AutoSave          bool   `json:"auto_save"`
	Language          string `json:"language"`
	Theme             string `json:"theme"`
}

// UserProfile is the public profile of a User.
type UserProfile struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Email       string      `gorm:"size:320;not null" json:"email"`
	Name        *string     `gorm:"size:128" json:"name,omitempty"`
	AvatarRef   *string     `json:"avatar_ref,omitempty"`
	Preferences Preferences `gorm:"serializer:json" json:"preferences"`
	CreatedAt   time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null" json:"updated_at"`
}

// ProfilePatch is a partial update of a UserProfile.
type ProfilePatch struct {
	Name        *string      `json:"name,omitempty"`
	AvatarRef   *string      `json:"avatar_ref,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// DefaultPreferences returns the preferences of a new profile.
func DefaultPreferences() Preferences {
	return DefaultSettings().Preferences()
}

// Settings converts p to client settings.
func (p Preferences) Settings() Settings {
	return Settings{
		Language:          p.Language,
		Theme:             p.Theme,
		AutoSave:          p.AutoSave,
		Notifications:     p.Notifications,
		DefaultRoastLevel: roast.Label(p.DefaultRoastLevel),
	}
}

// Validate applies the settings rules to p.
func (p Preferences) Validate() error {
	return p.Settings().Validate()
}

// Preferences converts s to profile preferences.
func (s Settings) Preferences() Preferences {
	return Preferences{
		DefaultRoastLevel: string(s.DefaultRoastLevel),
		Notifications:     s.Notifications,
		AutoSave:          s.AutoSave,
		Language:          s.Language,
		Theme:             s.Theme,
	}
}
