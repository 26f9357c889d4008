package domain

import "errors"

// ActionResult is the structured outcome of a provisioning verb. Known failures are
// reported here instead of as a Go error so the caller can render them inline.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	// Warning carries diagnostic remote output for operations that succeeded
	// anyway (stderr on a zero exit, best-effort deletes).
	Warning string `json:"warning,omitempty"`

	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Port int    `json:"port,omitempty"`
}

// Succeeded returns a successful result.
func Succeeded() ActionResult {
	return ActionResult{Success: true}
}

// Failed converts a classified error into a result. The message is taken from
// the classified error itself, without the context it was wrapped in.
func Failed(err error) ActionResult {
	var e *Error
	if errors.As(err, &e) {
		return ActionResult{Error: e.Error(), Kind: e.Kind}
	}
	return ActionResult{Error: err.Error()}
}
