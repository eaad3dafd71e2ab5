package validation

import (
	"fmt"

	dErrors "attesto/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	MaxBodySize = 64 * 1024
)

// Claim content limits
const (
	// MaxContentFields is the maximum number of top-level fields in claim content.
	MaxContentFields = 64

	// MaxContentKeyLength is the maximum length of a claim content key.
	MaxContentKeyLength = 100

	// MaxContentValueLength is the maximum length of a string value in claim content.
	MaxContentValueLength = 4096
)

// String element length limits
const (
	// MaxTitleLength is the maximum length of a claim title.
	MaxTitleLength = 200

	// MaxDIDLength is the maximum length of a DID.
	MaxDIDLength = 512

	// MaxIdempotencyKeyLength is the maximum length of an Idempotency-Key header.
	MaxIdempotencyKeyLength = 128
)

// CheckCount validates that a collection does not exceed the maximum count.
func CheckCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachKeyLength validates that each key of a map does not exceed the maximum length.
func CheckEachKeyLength[V any](fieldName string, values map[string]V, max int) error {
	for k := range values {
		if len(k) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s key exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}
