package model

import "time"

// PushSubscription holds a browser push subscription owned by a user.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	OwnerID   string    `gorm:"size:36;not null;index" json:"owner_id"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
