// Package domain defines the persistence models for the loyalty ledger and
// the admin surface. These types are mapped with GORM and shared across the
// repository, service and HTTP layers.
package domain

import "time"

// BonusKindFreeVisit is the only bonus kind the venue currently awards.
const BonusKindFreeVisit = "free_visit"

// DayLayout formats a visit's calendar day (venue time zone).
const DayLayout = "2006-01-02"

// User is a customer identified by an external messaging-platform identity.
// One user exists per distinct ExternalID; re-registering returns the stored
// row untouched.
//
// Fields:
//   - ID: storage-assigned sequence, stable for the user's lifetime.
//   - ExternalID: platform identity (unique, immutable).
//   - DisplayName: name shown to staff.
//   - Username / FirstName / LastName: optional profile fields from the platform.
type User struct {
	ID          uint64    `json:"id"           gorm:"primaryKey;autoIncrement"`
	ExternalID  string    `json:"external_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_users_external_id"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	Username    string    `json:"username"     gorm:"type:varchar(255)"`
	FirstName   string    `json:"first_name"   gorm:"type:varchar(255)"`
	LastName    string    `json:"last_name"    gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Visit is one scan of the venue code. Visits are append-only.
//
// VisitDay is the calendar date of OccurredAt in the venue time zone. The
// unique (user_id, visit_day) index is what rejects a second visit on the
// same day, even under concurrent requests.
type Visit struct {
	ID         uint64    `json:"id"          gorm:"primaryKey;autoIncrement"`
	UserID     uint64    `json:"user_id"     gorm:"not null;uniqueIndex:ux_visits_user_day,priority:1;index:idx_visits_user_time,priority:1"`
	VisitDay   string    `json:"visit_day"   gorm:"type:varchar(10);not null;uniqueIndex:ux_visits_user_day,priority:2"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index:idx_visits_user_time,priority:2"`
	Code       string    `json:"code"        gorm:"type:varchar(255);not null"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Visit.
func (Visit) TableName() string { return "visits" }

// Bonus is a free-visit credit earned on every tenth visit.
//
// Milestone records the visit count that earned the bonus (10, 20, ...);
// the unique (user_id, milestone) index guarantees one bonus per decade.
// Used flips false→true exactly once, stamped with UsedAt.
type Bonus struct {
	ID        uint64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    uint64     `json:"user_id"    gorm:"not null;uniqueIndex:ux_bonuses_user_milestone,priority:1;index:idx_bonuses_user_time,priority:1"`
	Milestone int64      `json:"milestone"  gorm:"not null;uniqueIndex:ux_bonuses_user_milestone,priority:2"`
	Kind      string     `json:"kind"       gorm:"type:varchar(32);not null;default:'free_visit'"`
	EarnedAt  time.Time  `json:"earned_at"  gorm:"not null;index:idx_bonuses_user_time,priority:2"`
	Used      bool       `json:"used"       gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Bonus.
func (Bonus) TableName() string { return "bonuses" }

// StaffMember is an entry in the venue's staff roster. OnShift marks who is
// currently working; the public roster only lists on-shift members.
type StaffMember struct {
	ID        uint64    `json:"id"                  gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"                gorm:"type:varchar(255);not null"`
	Role      string    `json:"role"                gorm:"type:varchar(255)"`
	PhotoKey  string    `json:"-"                   gorm:"type:varchar(255)"`
	PhotoURL  string    `json:"photo_url,omitempty" gorm:"type:varchar(1024)"`
	OnShift   bool      `json:"on_shift"            gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for StaffMember.
func (StaffMember) TableName() string { return "staff" }

// UserStats is a read model for the admin customer list.
type UserStats struct {
	User
	VisitCount  int64      `json:"visit_count"`
	UnusedBonus int64      `json:"unused_bonuses"`
	LastVisitAt *time.Time `json:"last_visit_at,omitempty"`
}
