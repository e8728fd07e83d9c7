package engine

import "fmt"

// Result is the engine's status code for a failed call.
type Result int

const (
	ResultFail Result = iota + 1
	ResultNotImplemented
	ResultInvalidID
	ResultIDNotFound
	ResultInvalidParameter
	ResultInsufficientMemory
	ResultFileNotFound
	ResultBankReadError
	ResultAlreadyInitialized
	ResultNotInitialized
	ResultInvalidState
)

var resultNames = map[Result]string{
	ResultFail:               "Fail",
	ResultNotImplemented:     "NotImplemented",
	ResultInvalidID:          "InvalidID",
	ResultIDNotFound:         "IDNotFound",
	ResultInvalidParameter:   "InvalidParameter",
	ResultInsufficientMemory: "InsufficientMemory",
	ResultFileNotFound:       "FileNotFound",
	ResultBankReadError:      "BankReadError",
	ResultAlreadyInitialized: "AlreadyInitialized",
	ResultNotInitialized:     "NotInitialized",
	ResultInvalidState:       "InvalidState",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Error is returned by every failing engine call.
type Error struct {
	Op     string
	Result Result
	Detail string
}

func (e *Error) Error() string {
	msg := e.Result.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return "engine: " + msg
}

// Is matches any *Error with the same Result, so callers can write
// errors.Is(err, engine.ErrIDNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Result == e.Result
}

// Errorf builds an *Error for op with a formatted detail.
func Errorf(op string, r Result, format string, args ...any) *Error {
	return &Error{Op: op, Result: r, Detail: fmt.Sprintf(format, args...)}
}

var (
	ErrFail               = &Error{Result: ResultFail}
	ErrInvalidID          = &Error{Result: ResultInvalidID}
	ErrIDNotFound         = &Error{Result: ResultIDNotFound}
	ErrInvalidParameter   = &Error{Result: ResultInvalidParameter}
	ErrInsufficientMemory = &Error{Result: ResultInsufficientMemory}
	ErrFileNotFound       = &Error{Result: ResultFileNotFound}
	ErrBankReadError      = &Error{Result: ResultBankReadError}
	ErrAlreadyInitialized = &Error{Result: ResultAlreadyInitialized}
	ErrNotInitialized     = &Error{Result: ResultNotInitialized}
)
