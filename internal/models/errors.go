package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared by the record store, services and handlers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
)

// MissingIDsError reports ids that were requested but do not exist.
type MissingIDsError struct {
	Entity string
	IDs    []int64
}

func (e *MissingIDsError) Error() string {
	ids := append([]int64(nil), e.IDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s not found with ids: [%s]", e.Entity, strings.Join(parts, ", "))
}

func (e *MissingIDsError) Unwrap() error { return ErrNotFound }
