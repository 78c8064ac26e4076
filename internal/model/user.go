package model

import "time"

// User is the owner of an API key. External management writes these rows;
// the gateway reads them during authentication.
type User struct {
	UserID         string     `json:"user_id" bson:"user_id" db:"user_id"`
	Password       string     `json:"-" bson:"-" db:"password"`
	UserName       string     `json:"user_name" bson:"user_name" db:"user_name"`
	PermissionCode string     `json:"permission_code,omitempty" bson:"permission_code,omitempty" db:"permission_code"`
	UseYn          string     `json:"use_yn" bson:"use_yn" db:"use_yn"`
	RefreshToken   string     `json:"-" bson:"-" db:"refresh_token"`
	CreateID       string     `json:"create_id,omitempty" bson:"create_id,omitempty" db:"create_id"`
	CreateDate     *time.Time `json:"create_date,omitempty" bson:"create_date,omitempty" db:"create_date"`
	UpdateID       string     `json:"update_id,omitempty" bson:"update_id,omitempty" db:"update_id"`
	UpdateDate     *time.Time `json:"update_date,omitempty" bson:"update_date,omitempty" db:"update_date"`
}

// Enabled reports whether the account may call the gateway.
func (u *User) Enabled() bool {
	return u != nil && (u.UseYn == "Y" || u.UseYn == "y")
}

// ApiKey holds the salted SHA-256 hash of a user's key. One active key
// per user; the plaintext is never stored.
type ApiKey struct {
	UserID         string     `json:"user_id" bson:"user_id" db:"user_id"`
	ApiKey         string     `json:"api_key" bson:"api_key" db:"api_key"`
	Comment        string     `json:"comment,omitempty" bson:"comment,omitempty" db:"comment"`
	GenerateDate   *time.Time `json:"generate_date,omitempty" bson:"generate_date,omitempty" db:"generate_date"`
	GenerateID     string     `json:"generate_id,omitempty" bson:"generate_id,omitempty" db:"generate_id"`
	RegenerateDate *time.Time `json:"regenerate_date,omitempty" bson:"regenerate_date,omitempty" db:"regenerate_date"`
	RegenerateID   string     `json:"regenerate_id,omitempty" bson:"regenerate_id,omitempty" db:"regenerate_id"`
}

// ApiPermission is a grant row: its existence means the user may call the
// api. The key carries a method column, but access checks are intentionally
// keyed by (user_id, api_id) only.
type ApiPermission struct {
	ApiID      string     `json:"api_id" bson:"api_id" db:"api_id"`
	Method     string     `json:"method" bson:"method" db:"method"`
	UserID     string     `json:"user_id" bson:"user_id" db:"user_id"`
	CreateID   string     `json:"create_id,omitempty" bson:"create_id,omitempty" db:"create_id"`
	CreateDate *time.Time `json:"create_date,omitempty" bson:"create_date,omitempty" db:"create_date"`
	UpdateID   string     `json:"update_id,omitempty" bson:"update_id,omitempty" db:"update_id"`
	UpdateDate *time.Time `json:"update_date,omitempty" bson:"update_date,omitempty" db:"update_date"`
}
