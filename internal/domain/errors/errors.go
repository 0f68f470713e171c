package errors

import "errors"

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidTransition signals a registry or caller defect: the requested
	// action is not permitted from the order's current state. It must never be
	// converted into an exception-state transition.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrChainTooDeep aborts an automatic chain that exceeded the hop cap.
	ErrChainTooDeep = errors.New("action chain too deep")
)

// DomainError is a recognized, user-facing failure. Its message is stored
// verbatim as the order's exception message; any other error is stored as a
// full diagnostic trace instead.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string {
	return e.Msg
}

// NewDomainError builds a DomainError with the given user-facing message.
func NewDomainError(msg string) *DomainError {
	return &DomainError{Msg: msg}
}

// AsDomainError extracts a DomainError from err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
