// Package document implements the version control stage: merging
// approved changes into the contract text and recording immutable,
// content-hashed document versions.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xraph/concord/id"
	"github.com/xraph/concord/state"
)

// MergeAuthor is recorded on versions produced by the merge stage.
const MergeAuthor = "system_merge"

// Merger consolidates approved changes into a final document.
type Merger interface {
	Merge(ctx context.Context, original string, approved []state.ApprovedChange, strategy string) (string, error)
}

// ClauseMerger applies clause-level changes in approval order: later
// contributors override earlier ones for the same clause, and the
// merged clauses are appended to the original text as an amendment
// section.
type ClauseMerger struct{}

// NewClauseMerger returns the default merger.
func NewClauseMerger() *ClauseMerger { return &ClauseMerger{} }

// Merge implements Merger.
func (m *ClauseMerger) Merge(ctx context.Context, original string, approved []state.ApprovedChange, strategy string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(approved) == 0 {
		return "", fmt.Errorf("merge: no approved changes")
	}

	merged := make(state.ChangeSet)
	for _, a := range approved {
		for clause, text := range a.Changes {
			merged[clause] = text
		}
	}

	clauses := make([]string, 0, len(merged))
	for clause := range merged {
		clauses = append(clauses, clause)
	}
	sort.Strings(clauses)

	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\n--- AMENDMENT ---\n")
	for _, clause := range clauses {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", clause, merged[clause])
	}
	return b.String(), nil
}

// NewVersion builds an immutable version record for merged content.
// The hash covers the content alone, so identical content always hashes
// identically regardless of metadata.
func NewVersion(content, summary string, parent id.VersionID) state.DocumentVersion {
	sum := sha256.Sum256([]byte(content))
	return state.DocumentVersion{
		ID:             id.NewVersionID(),
		Content:        content,
		ContentHash:    hex.EncodeToString(sum[:]),
		Author:         MergeAuthor,
		ChangesSummary: summary,
		ParentVersion:  parent,
		CreatedAt:      time.Now(),
	}
}
