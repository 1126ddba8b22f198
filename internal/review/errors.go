package review

import "fmt"

// TrashError reports a failed remove or restore at the gateway. The session
// is left exactly as it was before the call.
type TrashError struct {
	Op   string // "delete" or "undo"
	Path string
	Err  error
}

func (e *TrashError) Error() string {
	if e.Op == "undo" {
		return fmt.Sprintf("could not restore %s: %v; restore it manually from the trash", e.Path, e.Err)
	}
	return fmt.Sprintf("could not delete %s: %v", e.Path, e.Err)
}

func (e *TrashError) Unwrap() error { return e.Err }
