package models

import "github.com/golang-jwt/jwt/v5"

// RegisterRequest holds credentials for creating an account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued token, user info and the stored profile.
type AuthResponse struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username"`
	AccessToken   string   `json:"access_token,omitempty"`
	ExpiresIn     int64    `json:"expires_in,omitempty"`
	Profile       *Profile `json:"profile,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
