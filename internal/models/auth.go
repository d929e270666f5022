package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload issued on registry login.
type JWTClaims struct {
	StudentID string       `json:"sid"`
	Wallet    string       `json:"wallet"`
	Role      RegistryRole `json:"role"`
	jwt.RegisteredClaims
}
