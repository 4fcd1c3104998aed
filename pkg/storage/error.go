package storage

import "errors"

// ErrActiveSessionExists is returned when a project would get a second
// active session.
var ErrActiveSessionExists = errors.New("project already has an active session")

// ErrProjectConflict is returned when a project would share its root path
// with another project.
var ErrProjectConflict = errors.New("another project has the same root path")

// NotFoundError is returned when an entity doesn't exist in the store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "entity"
	}
	if e.ID == "" {
		return kind + " not found"
	}

	return kind + " not found: " + e.ID
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
