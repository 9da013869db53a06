package domain

import "time"

// AdminSession is a bearer token issued by the admin login. A session is
// valid while ExpiresAt is in the future.
type AdminSession struct {
	Token     string    `gorm:"type:varchar(64) NOT NULL;primaryKey"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (AdminSession) TableName() string { return "admin_sessions" }
