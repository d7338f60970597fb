package models

import "time"

// Model is a record persisted with its own ID and timestamps.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository stores one kind of [Model].
//
// Delete is soft: deleted records no longer come back from Get or List. List criteria keys are
// defined by each implementation.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
