package dto

import (
	"time"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// RegisterRequest enrols a wallet in the student registry.
type RegisterRequest struct {
	WalletAddress string              `json:"wallet_address" validate:"required,min=3,max=128"`
	Email         string              `json:"email" validate:"required,email"`
	StudentID     string              `json:"student_id" validate:"required,len=10,numeric"`
	Role          models.RegistryRole `json:"role" validate:"omitempty,oneof=student tutor"`
}

// LoginRequest proves registry membership with the original identifiers.
type LoginRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	StudentID     string `json:"student_id" validate:"required,len=10,numeric"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
	IssuedAt    time.Time       `json:"issued_at"`
	Student     *models.Student `json:"student"`
}

// RegisterResponse confirms a registry enrolment.
type RegisterResponse struct {
	Message string          `json:"message"`
	Student *models.Student `json:"student"`
}
