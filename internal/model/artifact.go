package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MaxArtifactSize is the maximum artifact content size retained in
// memory. Responses larger than this are truncated before hashing so
// the hash remains a function of what was actually stored.
const MaxArtifactSize = 10 * 1024 * 1024 // 10 MB

// Artifact is a successfully fetched, content-addressed unit of
// evidence: the response body plus its derived identity and provenance.
// Artifacts are written once to the delivery sink and never mutated;
// re-delivering the same content resolves to the same hash.
type Artifact struct {
	// Hash is the SHA-256 hash of Content in lowercase hex.
	// This is the artifact's identity for delivery deduplication.
	Hash string `json:"hash"`

	// Content is the raw response body.
	Content []byte `json:"-"`

	// Size is the content length in bytes.
	Size int64 `json:"size"`

	// ContentType is the MIME type reported by the server, possibly
	// corrected by the content-sniffing stage.
	ContentType string `json:"content_type"`

	// Title is the page title for HTML artifacts, empty otherwise.
	Title string `json:"title,omitempty"`

	// Target is the target that produced this artifact.
	Target *Target `json:"target"`

	// AttemptID identifies the successful attempt, tying the artifact
	// back to its audit record.
	AttemptID string `json:"attempt_id"`

	// StatusCode is the HTTP status of the successful response.
	StatusCode int `json:"status_code"`

	// FetchedAt is when the response was fully received.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewArtifact constructs an artifact from a fetched body, truncating
// oversized content and computing the content hash.
func NewArtifact(target *Target, attemptID string, statusCode int, contentType string, body []byte) *Artifact {
	if len(body) > MaxArtifactSize {
		body = body[:MaxArtifactSize]
	}
	a := &Artifact{
		Content:     body,
		Size:        int64(len(body)),
		ContentType: contentType,
		Target:      target,
		AttemptID:   attemptID,
		StatusCode:  statusCode,
		FetchedAt:   time.Now().UTC(),
	}
	a.ComputeHash()
	return a
}

// ComputeHash calculates and sets the SHA-256 hash of the content.
// Idempotent; called by NewArtifact and safe to call again after a
// stage rewrites Content.
func (a *Artifact) ComputeHash() {
	sum := sha256.Sum256(a.Content)
	a.Hash = hex.EncodeToString(sum[:])
	a.Size = int64(len(a.Content))
}
