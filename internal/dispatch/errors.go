package dispatch

import "fmt"

// ValidationError reports malformed or inconsistent input. It is raised
// before any extraction or network work.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UpstreamAnalysisError means the media-analysis collaborator failed. Error
// is generic so it can be shown to callers; the cause stays in Err.
type UpstreamAnalysisError struct {
	Type InputType
	Err  error
}

func (e *UpstreamAnalysisError) Error() string {
	return "media analysis failed"
}

func (e *UpstreamAnalysisError) Unwrap() error {
	return e.Err
}
