// File path: internal/buildfile/buildfile.go
package buildfile

import "context"

// Artifact is the handle to a leader's build file: the templated
// spreadsheet plus the folder that contains it.
type Artifact struct {
	ID       string
	FolderID string
	Name     string
}

// Store is the artifact storage collaborator. It offers name-based lookup
// and template copy; uniqueness per leader is the state machine's job, the
// storage layer only matches names.
type Store interface {
	// FindArtifact locates the build file for a leader, nil when absent.
	FindArtifact(ctx context.Context, leaderKey, company string) (*Artifact, error)
	// CreateArtifact copies the template into the leader's folder chain,
	// creating missing folders.
	CreateArtifact(ctx context.Context, leaderKey, company string) (*Artifact, error)
	// ArtifactByID fetches a previously recorded artifact; nil when the id
	// is stale and the file no longer exists.
	ArtifactByID(ctx context.Context, id string) (*Artifact, error)
	// GetField reads one fixed cell, addressed by sheet name and A1 ref.
	GetField(ctx context.Context, artifactID, sheet, cell string) (string, error)
	// SetField writes one fixed cell.
	SetField(ctx context.Context, artifactID, sheet, cell, value string) error
}

// FileName derives the build file's name from the leader key. Lookup and
// creation must agree on this, it is the only uniqueness the storage layer
// provides.
func FileName(leaderKey string) string {
	return "Build File - " + leaderKey
}
