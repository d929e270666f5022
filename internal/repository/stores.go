package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// SessionStore persists tutoring sessions with optimistic versioning.
type SessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	ListAwaitingRelease(ctx context.Context, before time.Time) ([]models.Session, error)
	HasReleasedSession(ctx context.Context, studentWallet, tutorID string) (bool, error)
}

// SessionEventStore keeps the per-session audit trail.
type SessionEventStore interface {
	Append(ctx context.Context, event *models.SessionEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]models.SessionEvent, error)
}

// ReviewStore persists reviews, one per student and tutor.
type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	ExistsForPair(ctx context.Context, studentWallet, tutorID string) (bool, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error)
}

// RegistryStore persists registry entries keyed by wallet and digests.
type RegistryStore interface {
	Create(ctx context.Context, student *models.Student) error
	FindByWallet(ctx context.Context, wallet string) (*models.Student, error)
	FindByStudentIDHash(ctx context.Context, digest string) (*models.Student, error)
	FindByEmailHash(ctx context.Context, digest string) (*models.Student, error)
}

// Stores groups the repositories of one storage backend.
type Stores struct {
	Sessions      SessionStore
	SessionEvents SessionEventStore
	Reviews       ReviewStore
	Registry      RegistryStore
}

// NewPostgresStores builds sqlx-backed repositories on db.
func NewPostgresStores(db *sqlx.DB) Stores {
	return Stores{
		Sessions:      NewSessionRepository(db),
		SessionEvents: NewSessionEventRepository(db),
		Reviews:       NewReviewRepository(db),
		Registry:      NewRegistryRepository(db),
	}
}

// NewMemoryStores builds process-local repositories for development and tests.
func NewMemoryStores() Stores {
	return Stores{
		Sessions:      NewMemorySessionRepository(),
		SessionEvents: NewMemorySessionEventRepository(),
		Reviews:       NewMemoryReviewRepository(),
		Registry:      NewMemoryRegistryRepository(),
	}
}
