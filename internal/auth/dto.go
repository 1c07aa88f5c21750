package auth

import (
	"github.com/frahmantamala/clinic-management/internal"
)

// LoginDTO accepts an email or phone as identifier.
type LoginDTO struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse is the shape shared by login and refresh.
type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"`
	User         *AuthUser `json:"user"`
}

func (d LoginDTO) Validate() error {
	if d.Identifier == "" {
		return internal.NewValidationFieldError("identifier", "identifier is required", internal.ErrCodeValidationFailed)
	}
	if d.Password == "" {
		return internal.NewValidationFieldError("password", "password is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	if d.RefreshToken == "" {
		return internal.NewValidationFieldError("refreshToken", "refreshToken is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (d ChangePasswordDTO) Validate() error {
	if d.CurrentPassword == "" {
		return internal.NewValidationFieldError("currentPassword", "currentPassword is required", internal.ErrCodeValidationFailed)
	}
	if len(d.NewPassword) < 8 {
		return internal.NewValidationFieldError("newPassword", "newPassword must be at least 8 characters", internal.ErrCodeValidationFailed)
	}
	return nil
}
