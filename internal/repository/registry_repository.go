package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// Registry unique constraints, as named by Postgres.
const (
	ConstraintRegistryWallet    = "registry_students_wallet_address_key"
	ConstraintRegistryEmail     = "registry_students_email_hash_key"
	ConstraintRegistryStudentID = "registry_students_student_id_hash_key"
)

// RegistryRepository stores hashed registry entries.
type RegistryRepository struct {
	db *sqlx.DB
}

// NewRegistryRepository constructs a RegistryRepository.
func NewRegistryRepository(db *sqlx.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

const registryColumns = `id, wallet_address, email_hash, student_id_hash, registry_hash, role, registered_at`

// Create inserts an entry; unique violations surface as *DuplicateError.
func (r *RegistryRepository) Create(ctx context.Context, student *models.Student) error {
	query := `INSERT INTO registry_students (` + registryColumns + `)
        VALUES (:id, :wallet_address, :email_hash, :student_id_hash, :registry_hash, :role, :registered_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create registry entry: %w", mapUniqueViolation(err))
	}
	return nil
}

// FindByWallet returns the entry for a wallet or sql.ErrNoRows.
func (r *RegistryRepository) FindByWallet(ctx context.Context, wallet string) (*models.Student, error) {
	return r.findOne(ctx, "wallet_address", wallet)
}

// FindByStudentIDHash returns the entry for a student ID digest or sql.ErrNoRows.
func (r *RegistryRepository) FindByStudentIDHash(ctx context.Context, digest string) (*models.Student, error) {
	return r.findOne(ctx, "student_id_hash", digest)
}

// FindByEmailHash returns the entry for an email digest or sql.ErrNoRows.
func (r *RegistryRepository) FindByEmailHash(ctx context.Context, digest string) (*models.Student, error) {
	return r.findOne(ctx, "email_hash", digest)
}

func (r *RegistryRepository) findOne(ctx context.Context, column, value string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM registry_students WHERE %s = $1`, registryColumns, column)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, value); err != nil {
		return nil, err
	}
	return &student, nil
}
