package domain

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("duplicate user")
	ErrFlagNotFound  = errors.New("flag not found")
	ErrInvalidIndex  = errors.New("invalid bounding box index")
	ErrMissingField  = errors.New("missing field")
	ErrNotFound      = errors.New("annotation not found")
)

// Error is a failure the store reports back to its caller instead of treating
// it as fatal. Message is meant for the person using the tool.
type Error struct {
	Kind    error
	Message string
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// IsReported tells reported failures (bad index, unknown user, ...) apart
// from infrastructure errors such as a failed write.
func IsReported(err error) bool {
	var reported *Error
	return errors.As(err, &reported)
}
