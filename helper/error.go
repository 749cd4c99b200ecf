package helper

import "fmt"

// NewError wraps an error with the name of the failing operation.
func NewError(operation string, err error) error {
	return fmt.Errorf("error in %v: %w", operation, err)
}
