package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/sellerdesk/internal/report"
)

// ArtifactInfo describes a generated file waiting for download.
type ArtifactInfo struct {
	ID          string      `json:"id"`
	Kind        report.Kind `json:"kind"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"contentType"`
	Items       int         `json:"items"`
	Skipped     int         `json:"skipped"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

type artifactEntry struct {
	operator string
	artifact report.Artifact
	expires  time.Time
}

// artifacts keeps generated files until they are downloaded once or expire.
type artifacts struct {
	mu      sync.Mutex
	entries map[string]artifactEntry
	ttl     time.Duration
	now     func() time.Time
}

func newArtifacts(ttl time.Duration) *artifacts {
	return &artifacts{entries: make(map[string]artifactEntry), ttl: ttl, now: time.Now}
}

func (a *artifacts) put(operator string, artifact report.Artifact) ArtifactInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.sweepLocked(now)

	id := uuid.NewString()
	entry := artifactEntry{operator: operator, artifact: artifact, expires: now.Add(a.ttl)}
	a.entries[id] = entry
	return ArtifactInfo{
		ID:          id,
		Kind:        artifact.Kind,
		Filename:    artifact.Filename,
		ContentType: artifact.ContentType,
		Items:       artifact.Items,
		Skipped:     artifact.Skipped,
		ExpiresAt:   entry.expires,
	}
}

// take returns the artifact and forgets it.
func (a *artifacts) take(operator, id string) (report.Artifact, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.entries[id]
	if !ok || entry.operator != operator {
		return report.Artifact{}, false
	}
	delete(a.entries, id)
	if a.now().After(entry.expires) {
		return report.Artifact{}, false
	}
	return entry.artifact, true
}

func (a *artifacts) sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked(a.now())
}

func (a *artifacts) sweepLocked(now time.Time) int {
	n := 0
	for id, entry := range a.entries {
		if now.After(entry.expires) {
			delete(a.entries, id)
			n++
		}
	}
	return n
}
