package game

import "fmt"

// CreationFailedMessage is shown when the reduced-count retry also fails.
const CreationFailedMessage = "Cannot create simulation with current settings. Try reducing the particle count."

// RetryError reports that both the requested and the reduced particle count
// failed. Err is the error from the retry.
type RetryError struct {
	Requested int
	Retried   int
	Err       error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("creating simulation with %d particles (retried from %d): %v", e.Retried, e.Requested, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// userMessage maps an operation error to the text shown in the UI.
func userMessage(err error) string {
	if _, ok := err.(*RetryError); ok {
		return CreationFailedMessage
	}
	return "Error: " + err.Error()
}
