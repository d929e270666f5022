package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/internal/dto"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	"github.com/noah-isme/badger-tutors-api/internal/repository"
	appErrors "github.com/noah-isme/badger-tutors-api/pkg/errors"
	"github.com/noah-isme/badger-tutors-api/pkg/hashing"
)

type registryStore interface {
	Create(ctx context.Context, student *models.Student) error
	FindByWallet(ctx context.Context, wallet string) (*models.Student, error)
	FindByStudentIDHash(ctx context.Context, digest string) (*models.Student, error)
	FindByEmailHash(ctx context.Context, digest string) (*models.Student, error)
}

// RegistryConfig configures registration rules and token issuance.
type RegistryConfig struct {
	EmailDomain string
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
	Now         func() time.Time
}

// Registry messages shown to users.
const (
	msgInvalidStudentID   = "Student ID must be exactly 10 digits"
	msgStudentIDTaken     = "Student ID already registered in the system"
	msgWalletTaken        = "Wallet address already registered to another student"
	msgEmailTaken         = "Email already registered in the system"
	msgRegistered         = "Successfully registered with BadgerTutors Registry"
	msgInvalidCredentials = "wallet, email or student ID does not match the registry"
	studentIDDigits       = 10
	defaultRegistryIssuer = "badger-tutors"
	defaultRegistryExpiry = 24 * time.Hour
	defaultRegistryDomain = "wisc.edu"
)

// RegistryService enrols students under salted digests and issues access
// tokens. Raw emails and student IDs are never stored or logged.
type RegistryService struct {
	repo      registryStore
	hasher    *hashing.Hasher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RegistryConfig
}

// NewRegistryService constructs a RegistryService.
func NewRegistryService(repo registryStore, hasher *hashing.Hasher, validate *validator.Validate, logger *zap.Logger, cfg RegistryConfig) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	cfg.EmailDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.EmailDomain)), "@")
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = defaultRegistryDomain
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultRegistryIssuer
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = defaultRegistryExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RegistryService{repo: repo, hasher: hasher, validator: validate, logger: logger, cfg: cfg}
}

// Register enrols a wallet. Student ID, email and wallet must each be unused.
func (s *RegistryService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if err := s.checkIdentifiers(req.StudentID, req.Email); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	role := req.Role
	if role == "" {
		role = models.RegistryRoleStudent
	}

	emailHash := s.hasher.HashIdentifier(req.Email)
	studentIDHash := s.hasher.HashStudentID(req.StudentID)

	if err := s.ensureUnused(ctx, s.repo.FindByStudentIDHash, studentIDHash, msgStudentIDTaken); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, s.repo.FindByWallet, req.WalletAddress, msgWalletTaken); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, s.repo.FindByEmailHash, emailHash, msgEmailTaken); err != nil {
		return nil, err
	}

	student := &models.Student{
		ID:            uuid.NewString(),
		WalletAddress: req.WalletAddress,
		EmailHash:     emailHash,
		StudentIDHash: studentIDHash,
		RegistryHash:  s.hasher.CompositeHash(emailHash, studentIDHash),
		Role:          role,
		RegisteredAt:  s.cfg.Now().UTC(),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, appErrors.Clone(appErrors.ErrConflict, duplicateMessage(dup.Constraint))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}

	s.logger.Info("registry entry created", zap.String("student_id", student.ID), zap.String("role", string(role)))
	return &dto.RegisterResponse{Message: msgRegistered, Student: student}, nil
}

// Login verifies the identifiers against the stored digests and issues an
// access token.
func (s *RegistryService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.checkIdentifiers(req.StudentID, req.Email); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	student, err := s.repo.FindByWallet(ctx, strings.TrimSpace(req.WalletAddress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, msgInvalidCredentials)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registry entry")
	}
	if !s.hasher.VerifyIdentifier(req.Email, student.EmailHash) || !s.hasher.VerifyStudentID(req.StudentID, student.StudentIDHash) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, msgInvalidCredentials)
	}

	issuedAt := s.cfg.Now().UTC()
	token, err := s.issueToken(student, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &dto.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.cfg.TokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		Student:     student,
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *RegistryService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.TokenSecret), nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithTimeFunc(s.cfg.Now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.Wallet == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *RegistryService) issueToken(student *models.Student, issuedAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		StudentID: student.ID,
		Wallet:    student.WalletAddress,
		Role:      student.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   student.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.cfg.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.TokenSecret))
}

func (s *RegistryService) checkIdentifiers(studentID, email string) error {
	if len(studentID) != studentIDDigits || strings.Trim(studentID, "0123456789") != "" {
		return appErrors.Clone(appErrors.ErrValidation, msgInvalidStudentID)
	}
	if !strings.HasSuffix(hashing.NormalizeIdentifier(email), "@"+s.cfg.EmailDomain) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Only @%s emails are allowed", s.cfg.EmailDomain))
	}
	return nil
}

func (s *RegistryService) ensureUnused(ctx context.Context, find func(context.Context, string) (*models.Student, error), key, message string) error {
	_, err := find(ctx, key)
	switch {
	case err == nil:
		return appErrors.Clone(appErrors.ErrConflict, message)
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registry")
	}
}

func duplicateMessage(constraint string) string {
	switch constraint {
	case repository.ConstraintRegistryWallet:
		return msgWalletTaken
	case repository.ConstraintRegistryEmail:
		return msgEmailTaken
	default:
		return msgStudentIDTaken
	}
}
