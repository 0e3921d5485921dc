package demo

import (
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// newID draws a UUID from the faker so a fixed seed reproduces the same ids.
func newID(f *gofakeit.Faker) uuid.UUID {
	id, err := uuid.Parse(f.UUID())
	if err != nil {
		return uuid.New()
	}
	return id
}
