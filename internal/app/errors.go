package app

import "net/http"

// DomainError carries the HTTP status and user-facing message for a failed
// operation. Handlers map everything else to a generic 500.
type DomainError struct {
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func domainError(status int, message string) *DomainError {
	return &DomainError{Status: status, Message: message}
}

var (
	errNotMember      = domainError(http.StatusForbidden, "You are not a member of this board")
	errOwnerUpdate    = domainError(http.StatusForbidden, "Only the owner can update this board")
	errOwnerDelete    = domainError(http.StatusForbidden, "Only the owner can delete this board")
	errBadCredentials = domainError(http.StatusUnauthorized, "Invalid Email or Password")
	errEmailTaken     = domainError(http.StatusConflict, "User already exist with this Email")
)
