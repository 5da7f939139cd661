package auth

import "github.com/angelmondragon/storefront-backend/internal/users"

// LoginRequest accepts either a username or an email in Login.
type LoginRequest struct {
	Login      string `json:"login" validate:"required,max=255"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RegisterRequest is the sign-up form. Password2 must repeat Password1.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"omitempty,max=150"`
	LastName  string `json:"last_name" validate:"omitempty,max=150"`
	Password1 string `json:"password1" validate:"required,min=8,max=128"`
	Password2 string `json:"password2" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user,omitempty"`
}
