package repository

import "errors"

var (
	// ErrCreativeNotFound is returned when an ad creative cannot be found.
	ErrCreativeNotFound = errors.New("ad creative not found")

	// ErrObjectNotFound is returned when an object does not exist in storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
