package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// UploaderClaims represents the JWT claims accepted by the upload API
type UploaderClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}
