package users

import "time"

// User is the persisted identity record. PasswordHash never leaves this package's callers as JSON.
type User struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	DisplayName  string    `gorm:"column:username;size:50;not null" json:"username"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// Profile is the public projection of a User.
type Profile struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"username"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile strips the credential from the record.
func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// RegistrationInput carries already-validated registration fields.
type RegistrationInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Session is the outcome of a successful register or login.
type Session struct {
	User      Profile
	Token     string
	ExpiresAt time.Time
}
