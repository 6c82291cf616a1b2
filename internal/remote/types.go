package remote

import "github.com/google/uuid"

// ProjectKind identifies the survey software format a remote project
// stores.
type ProjectKind string

const (
	// KindCompass is a Compass survey project.
	KindCompass ProjectKind = "COMPASS"
	// KindAriane is an Ariane survey project.
	KindAriane ProjectKind = "ARIANE"
)

// MutexInfo describes the remote lock holder of a project.
type MutexInfo struct {
	User         string `json:"user"`
	CreationDate string `json:"creation_date"`
	ModifiedDate string `json:"modified_date"`
}

// CommitInfo describes one remote revision. The ID is opaque and
// compared for equality only.
type CommitInfo struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
	CommitDate string `json:"commit_date,omitempty"`
}

// ProjectInfo is the remote metadata of a project.
type ProjectInfo struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Country      string      `json:"country"`
	Permission   string      `json:"permission"`
	Kind         ProjectKind `json:"type"`
	CreatedBy    string      `json:"created_by"`
	CreationDate string      `json:"creation_date"`
	ModifiedDate string      `json:"modified_date"`
	ActiveMutex  *MutexInfo  `json:"active_mutex"`
	LatestCommit *CommitInfo `json:"latest_commit"`
}

// Revision returns the latest remote revision marker, empty when the
// project has no commits yet.
func (p *ProjectInfo) Revision() string {
	if p.LatestCommit == nil {
		return ""
	}
	return p.LatestCommit.ID
}

// NewProject carries the fields needed to create a remote project.
type NewProject struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Country     string      `json:"country"`
	Kind        ProjectKind `json:"type"`
	Latitude    string      `json:"latitude,omitempty"`
	Longitude   string      `json:"longitude,omitempty"`
}

// UploadResult reports the outcome of an archive upload: either a new
// commit was created or the remote detected no changes.
type UploadResult struct {
	Saved  bool
	Commit *CommitInfo
}
