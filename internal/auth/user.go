package auth

import "time"

type Profile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	AvatarURL   string `json:"avatar_url"`
}

// User is the durable identity record. Pending OTPs and backup codes are
// held as sha256 hashes; the plaintext exists only in the email that
// delivered it or in the one-time enrollment response.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Profile          Profile
	IsVerified       bool
	OTP              *string
	OTPExpiresAt     *time.Time
	TwoFactorEnabled bool
	TOTPSecret       *string
	BackupCodes      []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is the projection returned to callers. It never carries the
// password hash, OTP, TOTP secret, or backup codes.
type PublicUser struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Profile    Profile `json:"profile"`
	IsVerified bool    `json:"is_verified"`
}

func (u *User) Public() PublicUser {
	name := u.Profile.FirstName
	if u.Profile.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.Profile.LastName
	}
	return PublicUser{
		ID:         u.ID,
		Name:       name,
		Email:      u.Email,
		Profile:    u.Profile,
		IsVerified: u.IsVerified,
	}
}
