package auth

import (
	"time"

	"github.com/user/accountd/models"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName       string  `json:"firstName" validate:"required,max=100" example:"Ada"`
	LastName        string  `json:"lastName" validate:"required,max=100" example:"Lovelace"`
	Email           string  `json:"email" validate:"required,email,max=255" example:"ada@example.com"`
	Password        string  `json:"password" validate:"required,min=8,max=72,bcryptlen,password" example:"Analyt1cal"`
	ConfirmPassword string  `json:"confirmPassword" validate:"required,eqfield=Password" example:"Analyt1cal"`
	BirthDate       string  `json:"birthDate" validate:"required,datetime=2006-01-02,pastdate" example:"1815-12-10"`
	AvatarURL       *string `json:"avatarUrl,omitempty" validate:"omitempty,url,max=2048" example:"https://example.com/ada.png"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password   string `json:"password" validate:"required" example:"Analyt1cal"`
	RememberMe bool   `json:"rememberMe" example:"true"`
}

// ClientMeta describes the caller of a login request.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult is what Service.Login produces.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *models.User
}

// UserResponse wraps a sanitized user.
type UserResponse struct {
	User models.PublicUser `json:"user"`
}

// LoginResponse is the body returned by POST /auth/login.
type LoginResponse struct {
	AccessToken string            `json:"accessToken" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string            `json:"tokenType" example:"Bearer"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	User        models.PublicUser `json:"user"`
}
