package model

import "time"

type AccountState string

const (
	StatePendingVerification AccountState = "pending_verification"
	StateActive              AccountState = "active"
)

// Account is the persisted identity record. PasswordHash and the raw token
// values never leave the service.
type Account struct {
	ID                  string     `json:"id"`
	FullName            string     `json:"fullName"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	ProfilePicture      *string    `json:"profilePicture,omitempty"`
	PasswordHash        string     `json:"-"`
	IsVerified          bool       `json:"isVerified"`
	VerificationToken   *string    `json:"-"`
	ResetPasswordToken  *string    `json:"-"`
	ResetPasswordExpiry *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func (a Account) State() AccountState {
	if a.IsVerified {
		return StateActive
	}
	return StatePendingVerification
}

// ResetRequested reports whether the account holds a reset token whose
// stored expiry is still in the future.
func (a Account) ResetRequested(now time.Time) bool {
	return a.ResetPasswordToken != nil && a.ResetPasswordExpiry != nil && a.ResetPasswordExpiry.After(now)
}

func (a Account) Profile(now time.Time) AccountProfile {
	profile := AccountProfile{
		ID:             a.ID,
		FullName:       a.FullName,
		Username:       a.Username,
		Email:          a.Email,
		ProfilePicture: a.ProfilePicture,
		IsVerified:     a.IsVerified,
		ResetRequested: a.ResetRequested(now),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if profile.ResetRequested {
		expiry := *a.ResetPasswordExpiry
		profile.ResetPasswordExpiry = &expiry
	}
	return profile
}

type AccountProfile struct {
	ID                  string     `json:"id"`
	FullName            string     `json:"fullName"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	ProfilePicture      *string    `json:"profilePicture,omitempty"`
	IsVerified          bool       `json:"isVerified"`
	ResetRequested      bool       `json:"resetRequested"`
	ResetPasswordExpiry *time.Time `json:"resetPasswordExpiry,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// SessionClaims is the identity the auth gate attaches to a request.
type SessionClaims struct {
	AccountID string `json:"sub"`
	Username  string `json:"username"`
	TokenID   string `json:"jti"`
}

type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
