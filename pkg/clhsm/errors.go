package clhsm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a caller supplied a value outside the
	// operation's domain (negative bit index, bad threshold, cleartext out of
	// range, malformed discriminant).
	ErrInvalidArgument = errors.New("clhsm: invalid argument")

	// ErrArithmeticPrecondition indicates an arithmetic operation was asked for
	// something that does not exist (division by zero, missing inverse).
	ErrArithmeticPrecondition = errors.New("clhsm: arithmetic precondition violated")

	// ErrInvariantViolation indicates an internal invariant failed. It signals a
	// bug or mismatched parameters, not bad user input.
	ErrInvariantViolation = errors.New("clhsm: structural invariant violated")

	// ErrMalformedWireData indicates a serialized buffer is truncated or its
	// embedded lengths are inconsistent.
	ErrMalformedWireData = errors.New("clhsm: malformed wire data")
)

var (
	// ErrDivisionByZero is an ErrArithmeticPrecondition.
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmeticPrecondition)

	// ErrNoInverse is an ErrArithmeticPrecondition.
	ErrNoInverse = fmt.Errorf("%w: inverse does not exist", ErrArithmeticPrecondition)

	// ErrEvenValue is an ErrArithmeticPrecondition raised by 2-adic inversion.
	ErrEvenValue = fmt.Errorf("%w: value must be odd", ErrArithmeticPrecondition)

	// ErrNotInKernel is an ErrInvariantViolation raised when a form expected in
	// the kernel of the order map is not.
	ErrNotInKernel = fmt.Errorf("%w: form is not in the kernel", ErrInvariantViolation)

	// ErrShortBuffer is an ErrMalformedWireData.
	ErrShortBuffer = fmt.Errorf("%w: short buffer", ErrMalformedWireData)
)

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Op  string // Operation that failed, e.g. "bigint.ModInverse"
	Err error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an *Error for op whose cause wraps kind, so errors.Is(err,
// kind) holds for the result.
func Errorf(op string, kind error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Op: op, Err: fmt.Errorf("%w: %s", kind, msg)}
}

// Wrap attaches op to err. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
