package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the item domain. Use errors.Is() to check these.
var (
	// ErrItemNotFound indicates no document carries the requested id.
	ErrItemNotFound = errors.New("secondChanceItem not found")

	// ErrInvalidItem indicates a request or document violates item constraints.
	ErrInvalidItem = errors.New("invalid item")

	// ErrDuplicateID indicates another document already carries the id.
	// It matches ErrInvalidItem as well.
	ErrDuplicateID = fmt.Errorf("%w: id already exists", ErrInvalidItem)

	// ErrUploadFailed indicates the uploaded image could not be stored.
	ErrUploadFailed = errors.New("upload failed")
)
