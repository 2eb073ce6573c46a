package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// FileRecord describes one file stored in an entry.
type FileRecord struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Hash string `json:"hash"`
}

// Manifest is written into every entry before its completion marker.
type Manifest struct {
	Fingerprint  Fingerprint     `json:"fingerprint"`
	Output       string          `json:"output"`
	TaskName     string          `json:"task_name,omitzero"`
	CodeIdentity string          `json:"code_identity"`
	Inputs       json.RawMessage `json:"inputs,omitzero"`
	Entries      []string        `json:"entries"`
	Files        []FileRecord    `json:"files"`
	OutputHash   string          `json:"output_hash"`
	Size         int64           `json:"size"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EntryInfo summarizes a complete entry for listings.
type EntryInfo struct {
	Output      string
	Fingerprint Fingerprint
	TaskName    string
	Size        int64
	CreatedAt   time.Time
}

// RestoreRecord lists the members of an output location that the cache placed there.
type RestoreRecord struct {
	Fingerprint Fingerprint   `json:"fingerprint"`
	Members     []OwnedMember `json:"members"`
	Linker      string        `json:"linker,omitzero"`
	RestoredAt  time.Time     `json:"restored_at"`
}

// OwnedMember is one top-level member of an output location. A mirror names the
// entry it was restored from; output computed with caching disabled carries the
// digest it had when it was committed instead.
type OwnedMember struct {
	Name        string      `json:"name"`
	Fingerprint Fingerprint `json:"fingerprint,omitzero"`
	Computed    bool        `json:"computed,omitzero"`
	Digest      string      `json:"digest,omitzero"`
}

// Member returns the recorded member called name.
func (r *RestoreRecord) Member(name string) (OwnedMember, bool) {
	if r == nil {
		return OwnedMember{}, false
	}
	i := slices.IndexFunc(r.Members, func(m OwnedMember) bool { return m.Name == name })
	if i < 0 {
		return OwnedMember{}, false
	}
	return r.Members[i], true
}

// SweepKind classifies a sweep candidate.
type SweepKind string

const (
	// SweepOrphanedTemp is a commit directory left behind by an interrupted commit.
	SweepOrphanedTemp SweepKind = "orphaned-temp"
	// SweepOrphanedStaging is a staging directory left behind by an interrupted run.
	SweepOrphanedStaging SweepKind = "orphaned-staging"
	// SweepIncompleteEntry is an entry directory without a completion marker.
	SweepIncompleteEntry SweepKind = "incomplete-entry"
)

// SweepCandidate is a directory the store considers reclaimable.
type SweepCandidate struct {
	Kind    SweepKind
	Output  string
	Path    string
	ModTime time.Time
}

// SweepFunc decides whether a sweep candidate is removed.
type SweepFunc func(SweepCandidate) bool

// SweepReport lists what a sweep found and what it removed.
type SweepReport struct {
	Candidates []SweepCandidate
	Removed    []string
}
