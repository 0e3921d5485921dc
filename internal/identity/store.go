package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrPatientExists   = errors.New("patient already exists")
)

// Store holds patient records. Listing methods return insertion order so that
// identity matching is reproducible.
type Store interface {
	ListByDateOfBirth(ctx context.Context, dob time.Time) ([]Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	// Create fails with ErrPatientExists when the id or the identity (normalized
	// name and date of birth) is already stored.
	Create(ctx context.Context, p *Patient) error
	AppendVisit(ctx context.Context, id uuid.UUID, visit time.Time) (*Patient, error)
	Search(ctx context.Context, term string, limit int) ([]Patient, error)
}
