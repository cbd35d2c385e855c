package acquisition

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput reports a local validation failure. It never reaches the network.
	ErrMissingInput = errors.New("missing input")
	// ErrAcquisitionInFlight is returned when a dialog already runs an acquisition.
	ErrAcquisitionInFlight = errors.New("acquisition already in progress")
	// ErrDialogClosed is returned by operations on a closed dialog.
	ErrDialogClosed = errors.New("dialog closed")
	// ErrNotLoaded is returned when acquiring before the subject was loaded.
	ErrNotLoaded = errors.New("subject not loaded")
	// ErrUnsupportedMethod is returned for gating methods without a strategy.
	ErrUnsupportedMethod = errors.New("unsupported gating method")
)

// Input field names carried by ErrMissingInput.
const (
	FieldPassword   = "password"
	FieldGateway    = "gateway"
	FieldIdentity   = "identity"
	FieldTwitchLink = "twitch_link"
)

// MissingInputError names the input that failed local validation.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingInput, e.Field)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

func missing(field string) error {
	return &MissingInputError{Field: field}
}

// AccessCheckFailedError wraps a remote failure while checking access.
type AccessCheckFailedError struct {
	Cause error
}

func (e *AccessCheckFailedError) Error() string {
	return "access check failed: " + e.Cause.Error()
}

func (e *AccessCheckFailedError) Unwrap() error { return e.Cause }

const genericRejection = "Could not acquire the modpack"

// RejectedError reports that the server declined the acquisition.
type RejectedError struct {
	Message string
	Cause   error
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "acquisition rejected"
	}
	return "acquisition rejected: " + e.Message
}

func (e *RejectedError) Unwrap() error { return e.Cause }

// TransportError reports a network failure. The operation is considered not completed.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// reject converts a remote-call failure into the acquisition error taxonomy.
func reject(err error) error {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		if rejected.Message == "" {
			rejected.Message = genericRejection
		}
		return rejected
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport
	}
	return &RejectedError{Message: genericRejection, Cause: err}
}

// UserMessage renders an acquisition error as a user-facing notification text.
func UserMessage(err error) string {
	var missingErr *MissingInputError
	if errors.As(err, &missingErr) {
		switch missingErr.Field {
		case FieldPassword:
			return "Enter the modpack password"
		case FieldGateway:
			return "Choose a payment method"
		case FieldIdentity:
			return "Sign in to acquire this modpack"
		case FieldTwitchLink:
			return "Link your Twitch account first"
		}
		return "Missing required input"
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		if rejected.Message != "" {
			return rejected.Message
		}
		return genericRejection
	}
	var checkErr *AccessCheckFailedError
	if errors.As(err, &checkErr) {
		return "Could not verify access to the modpack"
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return "Network error, please try again"
	}
	switch {
	case errors.Is(err, ErrAcquisitionInFlight):
		return "An acquisition is already in progress"
	case errors.Is(err, ErrNotLoaded):
		return "Modpack details are not loaded yet"
	case errors.Is(err, ErrDialogClosed):
		return "The acquisition was closed"
	}
	return "Unexpected error"
}
