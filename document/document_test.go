package document_test

import (
	"context"
	"strings"
	"testing"

	"github.com/xraph/concord/document"
	"github.com/xraph/concord/id"
	"github.com/xraph/concord/state"
)

func TestClauseMerger(t *testing.T) {
	m := document.NewClauseMerger()

	merged, err := m.Merge(context.Background(), "ORIGINAL CONTRACT",
		[]state.ApprovedChange{
			{Party: "proposal", Changes: state.ChangeSet{
				"payment_terms": "Net 45",
				"term":          "24 months",
			}},
			{Party: "globex", Changes: state.ChangeSet{
				"term": "36 months",
			}},
		}, "balanced")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if !strings.HasPrefix(merged, "ORIGINAL CONTRACT") {
		t.Error("merged document should retain the original text")
	}
	if !strings.Contains(merged, "Net 45") {
		t.Error("base proposal clause missing")
	}
	if !strings.Contains(merged, "36 months") || strings.Contains(merged, "24 months") {
		t.Error("later contributor should override the clause")
	}
}

func TestClauseMergerRejectsEmptyChangeSet(t *testing.T) {
	m := document.NewClauseMerger()
	if _, err := m.Merge(context.Background(), "doc", nil, "balanced"); err == nil {
		t.Error("empty approved set should fail")
	}
}

func TestNewVersion(t *testing.T) {
	parent := id.NewVersionID()
	v1 := document.NewVersion("content", "initial merge", parent)
	v2 := document.NewVersion("content", "another summary", id.Nil)

	if v1.Author != document.MergeAuthor {
		t.Errorf("author = %q, want %q", v1.Author, document.MergeAuthor)
	}
	if v1.ContentHash == "" || v1.ContentHash != v2.ContentHash {
		t.Error("identical content must hash identically")
	}
	if v1.ID.String() == v2.ID.String() {
		t.Error("versions must get distinct ids")
	}
	if v1.ParentVersion.String() != parent.String() {
		t.Error("parent version not recorded")
	}

	v3 := document.NewVersion("different content", "", id.Nil)
	if v3.ContentHash == v1.ContentHash {
		t.Error("different content must hash differently")
	}
}
