package shopify

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Shopify Errors
// ---------------------------------------------------------------------------

var (
	ErrRequestFailed     = errors.New("shopify: request failed")
	ErrInvalidResponse   = errors.New("shopify: invalid response")
	ErrRateLimited       = errors.New("shopify: rate limited")
	ErrThrottled         = errors.New("shopify: query cost exceeds available budget")
	ErrRetriesExhausted  = errors.New("shopify: retries exhausted")
	ErrGraphQL           = errors.New("shopify: graphql error")
	ErrUserErrors        = errors.New("shopify: user errors")
	ErrBrokenPagination  = errors.New("shopify: page reports more results without a cursor")
	ErrNoStagedTarget    = errors.New("shopify: no staged upload target returned")
	ErrMissingUploadKey  = errors.New("shopify: staged upload parameters have no key")
	ErrUploadFailed      = errors.New("shopify: staged upload failed")
	ErrEmptySubmission   = errors.New("shopify: bulk submission has no changes")
	ErrNoBulkOperation   = errors.New("shopify: bulk operation missing from response")
	ErrMalformedJSONLine = errors.New("shopify: malformed jsonl line")
)

// UserError is a field-level rejection returned by a mutation
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrorsError carries the full userErrors payload of a rejected mutation
type UserErrorsError struct {
	Operation string
	Errors    []UserError
}

// Error implements error
func (e *UserErrorsError) Error() string {
	payload, err := json.Marshal(e.Errors)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", e.Errors))
	}
	return fmt.Sprintf("shopify: %s returned user errors: %s", e.Operation, payload)
}

// Unwrap allows errors.Is(err, ErrUserErrors)
func (e *UserErrorsError) Unwrap() error {
	return ErrUserErrors
}

func checkUserErrors(operation string, userErrors []UserError) error {
	if len(userErrors) == 0 {
		return nil
	}
	return &UserErrorsError{Operation: operation, Errors: userErrors}
}
