package entity

import "time"

// Gender is the optional self-description stored on an account.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderDiverse     Gender = "diverse"
	GenderUndisclosed Gender = "undisclosed"
)

// User represents one registered account. PasswordSecret is the bcrypt
// output and is never serialized.
type User struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordSecret string    `db:"password_secret" json:"-"`
	FirstName      string    `db:"first_name" json:"firstName"`
	LastName       string    `db:"last_name" json:"lastName"`
	Verified       bool      `db:"verified" json:"verified"`
	AvatarURL      string    `db:"avatar_url" json:"avatarUrl"`
	Gender         *Gender   `db:"gender" json:"gender,omitempty"`
	CreatedAt      time.Time `db:"-" json:"createdAt"`
	UpdatedAt      time.Time `db:"-" json:"updatedAt"`
}

// UserPatch lists the fields an update may change. Nil means unchanged.
type UserPatch struct {
	PasswordSecret *string
	Verified       *bool
	FirstName      *string
	LastName       *string
	Gender         *Gender
}

// Apply copies the set fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.PasswordSecret != nil {
		u.PasswordSecret = *p.PasswordSecret
	}
	if p.Verified != nil {
		u.Verified = *p.Verified
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Gender != nil {
		g := *p.Gender
		u.Gender = &g
	}
}

// Profile is the projection returned to clients.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Verified  bool      `json:"verified"`
	AvatarURL string    `json:"avatarUrl"`
	Gender    *Gender   `json:"gender,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Verified:  u.Verified,
		AvatarURL: u.AvatarURL,
		Gender:    u.Gender,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
