package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SourceKind says how posting text entered the system.
type SourceKind string

const (
	SourceURL  SourceKind = "url"
	SourceFile SourceKind = "file"
)

// Source records where posting text came from. Digest identifies the cleaned text, so the same
// posting fetched twice has the same digest.
type Source struct {
	Kind       SourceKind `json:"kind"`
	Origin     string     `json:"origin"`
	Platform   string     `json:"platform,omitempty"`
	Rendered   bool       `json:"rendered,omitempty"`
	Digest     string     `json:"digest"`
	IngestedAt time.Time  `json:"ingested_at"`
}

func newSource(kind SourceKind, origin, cleaned string) *Source {
	return &Source{
		Kind:       kind,
		Origin:     origin,
		Digest:     digest(cleaned),
		IngestedAt: time.Now().UTC(),
	}
}

// ShortDigest is the first 12 hex digits of Digest, enough to tell postings apart in logs.
func (s *Source) ShortDigest() string {
	if len(s.Digest) < 12 {
		return s.Digest
	}
	return s.Digest[:12]
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
