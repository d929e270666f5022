package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/badger-tutors-api/internal/models"
)

// MemorySessionRepository keeps sessions in process memory. It honours the
// same version check as the Postgres repository.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemorySessionRepository constructs an empty store.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.Session)}
}

func (r *MemorySessionRepository) FindByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.Clone(), nil
}

func (r *MemorySessionRepository) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("create session: %w", &DuplicateError{Constraint: "tutoring_sessions_pkey"})
	}
	if session.Version == 0 {
		session.Version = 1
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepository) Update(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return fmt.Errorf("update session %s at version %d: %w", session.ID, session.Version, ErrStaleVersion)
	}
	next := session.Clone()
	next.Version = session.Version + 1
	next.CreatedAt = stored.CreatedAt
	r.sessions[session.ID] = next
	session.Version = next.Version
	return nil
}

func (r *MemorySessionRepository) List(_ context.Context, filter models.SessionFilter) ([]models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.Session, 0)
	for _, s := range r.sessions {
		if filter.Wallet != "" && s.StudentWallet != filter.Wallet && s.TutorWallet != filter.Wallet {
			continue
		}
		if filter.TutorID != "" && s.TutorID != filter.TutorID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		result = append(result, *s.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledTime.After(result[j].ScheduledTime) })
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemorySessionRepository) ListAwaitingRelease(_ context.Context, before time.Time) ([]models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.Session, 0)
	for _, s := range r.sessions {
		if s.AwaitingAutoRelease(before) {
			result = append(result, *s.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConfirmationDeadline.Before(*result[j].ConfirmationDeadline)
	})
	return result, nil
}

func (r *MemorySessionRepository) HasReleasedSession(_ context.Context, studentWallet, tutorID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.StudentWallet == studentWallet && s.TutorID == tutorID && s.Reviewable() {
			return true, nil
		}
	}
	return false, nil
}

// MemorySessionEventRepository keeps the audit trail in memory.
type MemorySessionEventRepository struct {
	mu     sync.RWMutex
	events map[string][]models.SessionEvent
}

// NewMemorySessionEventRepository constructs an empty audit store.
func NewMemorySessionEventRepository() *MemorySessionEventRepository {
	return &MemorySessionEventRepository{events: make(map[string][]models.SessionEvent)}
}

func (r *MemorySessionEventRepository) Append(_ context.Context, event *models.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.SessionID] = append(r.events[event.SessionID], *event)
	return nil
}

func (r *MemorySessionEventRepository) ListBySession(_ context.Context, sessionID string) ([]models.SessionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SessionEvent, len(r.events[sessionID]))
	copy(out, r.events[sessionID])
	return out, nil
}

// MemoryReviewRepository enforces one review per student and tutor under a lock.
type MemoryReviewRepository struct {
	mu      sync.RWMutex
	reviews []models.Review
}

// NewMemoryReviewRepository constructs an empty review store.
func NewMemoryReviewRepository() *MemoryReviewRepository {
	return &MemoryReviewRepository{}
}

func (r *MemoryReviewRepository) Create(_ context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.StudentWallet == review.StudentWallet && existing.TutorID == review.TutorID {
			return fmt.Errorf("create review: %w", &DuplicateError{Constraint: "uq_tutor_reviews_student_tutor"})
		}
	}
	r.reviews = append(r.reviews, *review)
	return nil
}

func (r *MemoryReviewRepository) ExistsForPair(_ context.Context, studentWallet, tutorID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.reviews {
		if existing.StudentWallet == studentWallet && existing.TutorID == tutorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryReviewRepository) ListByTutor(_ context.Context, tutorID string) ([]models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Review, 0)
	for _, existing := range r.reviews {
		if existing.TutorID == tutorID {
			out = append(out, existing)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MemoryRegistryRepository keeps registry entries with the same uniqueness
// rules as registry_students.
type MemoryRegistryRepository struct {
	mu       sync.RWMutex
	students []models.Student
}

// NewMemoryRegistryRepository constructs an empty registry.
func NewMemoryRegistryRepository() *MemoryRegistryRepository {
	return &MemoryRegistryRepository{}
}

func (r *MemoryRegistryRepository) Create(_ context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.students {
		switch {
		case s.WalletAddress == student.WalletAddress:
			return fmt.Errorf("create registry entry: %w", &DuplicateError{Constraint: ConstraintRegistryWallet})
		case s.StudentIDHash == student.StudentIDHash:
			return fmt.Errorf("create registry entry: %w", &DuplicateError{Constraint: ConstraintRegistryStudentID})
		case s.EmailHash == student.EmailHash:
			return fmt.Errorf("create registry entry: %w", &DuplicateError{Constraint: ConstraintRegistryEmail})
		}
	}
	r.students = append(r.students, *student)
	return nil
}

func (r *MemoryRegistryRepository) FindByWallet(_ context.Context, wallet string) (*models.Student, error) {
	return r.find(func(s models.Student) bool { return s.WalletAddress == wallet })
}

func (r *MemoryRegistryRepository) FindByStudentIDHash(_ context.Context, digest string) (*models.Student, error) {
	return r.find(func(s models.Student) bool { return s.StudentIDHash == digest })
}

func (r *MemoryRegistryRepository) FindByEmailHash(_ context.Context, digest string) (*models.Student, error) {
	return r.find(func(s models.Student) bool { return s.EmailHash == digest })
}

func (r *MemoryRegistryRepository) find(match func(models.Student) bool) (*models.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.students {
		if match(s) {
			cp := s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}
