package model

import (
	"time"
)

type UserRole string

const (
	Candidate UserRole = "candidate"
	Assessor  UserRole = "assessor"
	Admin     UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case Candidate, Assessor, Admin:
		return true
	default:
		return false
	}
}

// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('candidate','assessor','admin');default:'candidate'" json:"role"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID          uint     `json:"id"`
	DisplayName string   `json:"displayName"`
	Role        UserRole `json:"role"`
}

// CanReview reports whether the principal may assess evidence.
func (p Principal) CanReview() bool {
	return p.Role == Assessor || p.Role == Admin
}
