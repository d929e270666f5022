package models

import (
	"math"
	"time"
)

// Review is an immutable rating left by a student for a tutor.
type Review struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	StudentWallet string    `db:"student_wallet" json:"student_wallet"`
	TutorID       string    `db:"tutor_id" json:"tutor_id"`
	Rating        int       `db:"rating" json:"rating"`
	ReviewText    string    `db:"review_text" json:"review_text"`
	ContentHash   string    `db:"content_hash" json:"content_hash"`
	ReviewerHash  string    `db:"reviewer_hash" json:"reviewer_hash"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// TutorRating is the aggregate of every review for a tutor.
type TutorRating struct {
	TutorID         string  `json:"tutor_id"`
	AverageRating   float64 `json:"average_rating"`
	ReviewCount     int     `json:"review_count"`
	ReputationScore int     `json:"reputation_score"`
}

// NewTutorRating aggregates the given reviews. The reputation score is the
// mean scaled to 0..100.
func NewTutorRating(tutorID string, reviews []Review) TutorRating {
	rating := TutorRating{TutorID: tutorID}
	if len(reviews) == 0 {
		return rating
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	rating.ReviewCount = len(reviews)
	rating.AverageRating = float64(sum) / float64(len(reviews))
	rating.ReputationScore = int(math.Round(rating.AverageRating * 20))
	return rating
}

// RoundedAverage returns the mean rounded to one decimal place.
func (r TutorRating) RoundedAverage() float64 {
	return math.Round(r.AverageRating*10) / 10
}
