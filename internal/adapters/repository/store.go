// Package repository holds the authoritative blueprint store.
package repository

import (
	"context"

	"github.com/okian/blueprints/internal/domain/model"
)

// Store provides read/write access to blueprints keyed by (author, name).
// Every method is atomic with respect to the others and returns copies.
type Store interface {
	// List returns the author's blueprints in creation order. Unknown authors
	// yield an empty slice, never an error.
	List(ctx context.Context, author string) []model.Blueprint

	// Get returns ErrNotFound if the pair does not exist.
	Get(ctx context.Context, author, name string) (model.Blueprint, error)

	// Create inserts a new blueprint. Returns ErrAlreadyExists and leaves the
	// stored value untouched if the pair is taken.
	Create(ctx context.Context, author, name string, points []model.Point) (model.Blueprint, error)

	// ReplacePoints overwrites the whole point sequence.
	ReplacePoints(ctx context.Context, author, name string, points []model.Point) (model.Blueprint, error)

	// AppendPoint adds p at the end and returns the full resulting sequence.
	AppendPoint(ctx context.Context, author, name string, p model.Point) (model.Blueprint, error)

	// Delete removes the blueprint and, with it, the author once empty.
	Delete(ctx context.Context, author, name string) error

	// Count returns the number of stored blueprints.
	Count(ctx context.Context) int

	// Authors returns every author with at least one blueprint, sorted.
	Authors(ctx context.Context) []string

	// Reset drops all data.
	Reset(ctx context.Context)
}
