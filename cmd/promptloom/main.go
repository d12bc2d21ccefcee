package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess          = 0 // Command completed
	ExitValidationFailed = 1 // One or more documents failed validation
	ExitError            = 2 // Configuration or runtime error
)

// ValidationFailureError indicates that validation ran successfully,
// but one or more documents did not conform.
type ValidationFailureError struct {
	Message string
}

func (e *ValidationFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var validationErr *ValidationFailureError
		if errors.As(err, &validationErr) {
			os.Exit(ExitValidationFailed)
		}

		os.Exit(ExitError)
	}
}
