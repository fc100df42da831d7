package repository

import "errors"

// Sentinel kinds for blueprint store errors.
var (
	ErrNotFound      = errors.New("blueprint not found")
	ErrAlreadyExists = errors.New("blueprint already exists")
)
