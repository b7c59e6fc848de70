// File path: internal/phase/errors.go
package phase

import "fmt"

// ExtractionError reports that required lead fields are missing from an
// event. The event stays unrecorded and retries on the next batch.
type ExtractionError struct {
	EventID string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract lead from event %s: %v", e.EventID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ArtifactCreationError reports a template copy or storage failure while
// building a leader's artifact.
type ArtifactCreationError struct {
	LeaderKey string
	Err       error
}

func (e *ArtifactCreationError) Error() string {
	return fmt.Sprintf("create build artifact for %s: %v", e.LeaderKey, e.Err)
}

func (e *ArtifactCreationError) Unwrap() error { return e.Err }

// LinkGenerationError reports an assessment API failure during first-time
// creation. It must propagate: the ledger may never record an artifact that
// is missing its login code.
type LinkGenerationError struct {
	LeaderKey string
	Err       error
}

func (e *LinkGenerationError) Error() string {
	return fmt.Sprintf("generate assessment link for %s: %v", e.LeaderKey, e.Err)
}

func (e *LinkGenerationError) Unwrap() error { return e.Err }

// ValidationError reports that a critical build-file field read back empty
// after a Phase 1 write. The event must retry on the next batch.
type ValidationError struct {
	ArtifactID string
	Field      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("artifact %s failed validation: field %q is empty", e.ArtifactID, e.Field)
}

// ArtifactNotFoundError reports that neither the ledger email index nor the
// structural search resolved an artifact for a Phase 2 session. Phase 1 has
// apparently never completed for this leader.
type ArtifactNotFoundError struct {
	LeaderKey string
	Email     string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("no build artifact found for %s (%s); phase 1 appears incomplete", e.LeaderKey, e.Email)
}
