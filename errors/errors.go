package errors

import (
	"fmt"
	"net/http"
)

// Error is the typed failure returned by the service layer. Status carries the
// HTTP status the handlers should respond with.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// New creates a new Error with the given message and status code
func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

var (
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthenticated     = New("unauthenticated", http.StatusUnauthorized)

	// ErrNotFound covers both a record that does not exist and a caller that
	// is not a participant of the conversation it names. The two cases are
	// deliberately indistinguishable so callers cannot probe for the
	// existence of conversations they do not belong to.
	ErrNotFound = New("not found", http.StatusNotFound)

	ErrNotAuthorized       = New("not authorized", http.StatusForbidden)
	ErrAlreadyMember       = New("user is already part of this conversation", http.StatusConflict)
	ErrNotMember           = New("user is not part of this conversation", http.StatusConflict)
	ErrMinimumParticipants = New("conversation must keep at least 2 participants", http.StatusConflict)
	ErrNoPriorMessage      = New("no prior message exists between these users", http.StatusNotFound)
	ErrEmptyContent        = New("message content must not be empty", http.StatusBadRequest)
)
