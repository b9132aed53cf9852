package occupancy

import "errors"

// Domain errors. They are reported back to the requesting client and leave
// every seat unchanged.
var (
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatOccupied      = errors.New("seat is already occupied")
	ErrNoActiveSession   = errors.New("seat has no active session")
	ErrNotOwner          = errors.New("seat is held by another user")
	ErrAlreadyCheckedIn  = errors.New("user already holds a seat")
	ErrInvalidTransition = errors.New("seat is not in a state that allows this action")
	ErrMissingUser       = errors.New("user id is required")
)

var domainErrors = []error{
	ErrSeatNotFound,
	ErrSeatOccupied,
	ErrNoActiveSession,
	ErrNotOwner,
	ErrAlreadyCheckedIn,
	ErrInvalidTransition,
	ErrMissingUser,
}

// IsDomainError reports whether err is a rejected transition rather than an
// infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
