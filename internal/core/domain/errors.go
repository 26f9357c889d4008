package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies errors the presentation layer knows how to render.
type Kind string

const (
	KindUnknown        Kind = ""
	KindConfiguration  Kind = "configuration"
	KindKeyNotFound    Kind = "key_not_found"
	KindAuthentication Kind = "authentication"
	KindDockerMissing  Kind = "docker_missing"
	KindRemoteCommand  Kind = "remote_command"
	KindPrivilege      Kind = "privilege"
	KindValidation     Kind = "validation"
	KindDuplicateName  Kind = "duplicate_name"
)

// Error is a classified failure. Errors without a Kind are transport
// failures and are passed through untouched.
type Error struct {
	Kind    Kind
	Message string
	// Path is the resolved private key path for KindKeyNotFound.
	Path string
	// Stderr is the raw remote diagnostic output, if any.
	Stderr string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: KindPrivilege}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func NewKeyNotFoundError(path string, cause error) *Error {
	return &Error{
		Kind:    KindKeyNotFound,
		Message: fmt.Sprintf("SSH private key not found or unreadable at %s", path),
		Path:    path,
		Cause:   cause,
	}
}

func NewAuthenticationError(cause error) *Error {
	return &Error{
		Kind:    KindAuthentication,
		Message: "SSH authentication failed: the remote host rejected the configured credentials",
		Cause:   cause,
	}
}

func NewDockerMissingError(stderr string) *Error {
	return &Error{
		Kind:    KindDockerMissing,
		Message: "Docker is not installed or accessible on the remote server.",
		Stderr:  stderr,
	}
}

func NewRemoteCommandError(stderr string) *Error {
	msg := stderr
	if msg == "" {
		msg = "Unknown Docker error on the remote server."
	}
	return &Error{Kind: KindRemoteCommand, Message: msg, Stderr: stderr}
}

func NewPrivilegeError(output string) *Error {
	return &Error{
		Kind:    KindPrivilege,
		Message: "sudo requires a password or an interactive terminal; grant the SSH user passwordless sudo",
		Stderr:  output,
	}
}

func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewDuplicateNameError(name string) *Error {
	return &Error{
		Kind:    KindDuplicateName,
		Message: fmt.Sprintf("A container with the name %q already exists.", name),
	}
}

// ClassifyDockerFailure maps a failed docker invocation onto the taxonomy.
func ClassifyDockerFailure(res CommandResult) error {
	if strings.Contains(res.Stderr, "command not found") || strings.Contains(res.Stderr, "docker: not found") {
		return NewDockerMissingError(res.Stderr)
	}
	return NewRemoteCommandError(strings.TrimSpace(res.Stderr))
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsClassified reports whether err belongs to the known taxonomy.
func IsClassified(err error) bool {
	return KindOf(err) != KindUnknown
}
