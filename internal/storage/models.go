package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Preference is a single namespaced key/value row.
type Preference struct {
	Namespace string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Layout is the persisted content of one customizable keyboard page.
type Layout struct {
	Page      string
	Content   string
	UpdatedAt time.Time
}
