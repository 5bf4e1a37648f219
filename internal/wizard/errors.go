package wizard

import "errors"

// Kind classifies why a setup run stopped. The set is closed; every kind
// ends the run with a non-zero exit status.
type Kind int

const (
	// KindNotFound means the dump1090 configuration file does not exist.
	KindNotFound Kind = iota + 1
	// KindEmptyInput means no location was entered.
	KindEmptyInput
	// KindRemoteFailure covers network errors, bad statuses, malformed
	// responses and empty result sets from the geocoding service.
	KindRemoteFailure
	// KindIOFailure covers read and write errors on the config file and console.
	KindIOFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindEmptyInput:
		return "empty_input"
	case KindRemoteFailure:
		return "remote_failure"
	case KindIOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

// Error is the error returned by Wizard.Run.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of a wizard error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind, true
	}
	return 0, false
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
