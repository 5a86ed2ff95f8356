package indexctx

import (
	"os"
	"path/filepath"
	"testing"

	"repoindex/internal/contributor"
	"repoindex/internal/coordinate"
	"repoindex/internal/record"
)

func testRegistry() *contributor.Registry {
	return contributor.NewRegistry()
}

func mustOpen(t *testing.T, dir string) *Context {
	t.Helper()
	ctx, err := Open(dir, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ctx
}

func TestOpenCreatesFreshContextID(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	if ctx.ID() == "" {
		t.Fatal("expected non-empty context id")
	}
	if ctx.CommitSeq() != 0 {
		t.Fatalf("CommitSeq = %d, want 0", ctx.CommitSeq())
	}
}

func TestReopenPreservesIDAndDocuments(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)

	coord := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	rec := record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: coordinate.UINFO(coord), Stored: true}}}
	if err := ctx.AddArtifact(coord, rec); err != nil {
		t.Fatalf("AddArtifact: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	wantID := ctx.ID()
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx2 := mustOpen(t, dir)
	defer ctx2.Close()

	if ctx2.ID() != wantID {
		t.Fatalf("ID after reopen = %s, want %s", ctx2.ID(), wantID)
	}
	if ctx2.CommitSeq() != 1 {
		t.Fatalf("CommitSeq after reopen = %d, want 1", ctx2.CommitSeq())
	}

	searcher, err := ctx2.AcquireSearcher()
	if err != nil {
		t.Fatalf("AcquireSearcher: %v", err)
	}
	defer ctx2.ReleaseSearcher(searcher)
	if len(searcher.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(searcher.Records))
	}
}

func TestAddArtifactDedupesByUINFO(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	coord := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	rec1 := record.Record{Fields: []record.Field{
		{Name: record.FieldUINFO, Value: coordinate.UINFO(coord), Stored: true},
		{Name: "SIZE", Value: "1"},
	}}
	rec2 := record.Record{Fields: []record.Field{
		{Name: record.FieldUINFO, Value: coordinate.UINFO(coord), Stored: true},
		{Name: "SIZE", Value: "2"},
	}}

	if err := ctx.AddArtifact(coord, rec1); err != nil {
		t.Fatalf("AddArtifact 1: %v", err)
	}
	if err := ctx.AddArtifact(coord, rec2); err != nil {
		t.Fatalf("AddArtifact 2: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	searcher, err := ctx.AcquireSearcher()
	if err != nil {
		t.Fatalf("AcquireSearcher: %v", err)
	}
	defer ctx.ReleaseSearcher(searcher)
	if len(searcher.Records) != 1 {
		t.Fatalf("got %d records, want 1 (dedup by UINFO)", len(searcher.Records))
	}
	if v, _ := searcher.Records[0].Get("SIZE"); v != "2" {
		t.Fatalf("SIZE = %q, want %q (last write wins)", v, "2")
	}
}

func TestTimestampMonotonicAcrossCommits(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	coord := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	rec := record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: coordinate.UINFO(coord)}}}

	if err := ctx.AddArtifact(coord, rec); err != nil {
		t.Fatalf("AddArtifact: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	first := ctx.LastCommitTime()

	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit 2 (no pending changes): %v", err)
	}
	second := ctx.LastCommitTime()

	if second.Before(first) {
		t.Fatalf("timestamp went backwards: %v then %v", first, second)
	}
}

func TestChangesSinceReportsUpsertsAndDeletes(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	c1 := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	c2 := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "b", Version: "1.0", Extension: "jar"}

	_ = ctx.AddArtifact(c1, record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: coordinate.UINFO(c1)}}})
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	base := ctx.CommitSeq()

	_ = ctx.AddArtifact(c2, record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: coordinate.UINFO(c2)}}})
	_ = ctx.DeleteArtifact(c1)
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	upserts, deletes, err := ctx.ChangesSince(base)
	if err != nil {
		t.Fatalf("ChangesSince: %v", err)
	}
	if len(upserts) != 1 || upserts[0].UINFO() != coordinate.UINFO(c2) {
		t.Fatalf("upserts = %+v, want [%s]", upserts, coordinate.UINFO(c2))
	}
	if len(deletes) != 1 || deletes[0] != coordinate.UINFO(c1) {
		t.Fatalf("deletes = %+v, want [%s]", deletes, coordinate.UINFO(c1))
	}
}

func TestChangesSinceFutureSeqIsError(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	if _, _, err := ctx.ChangesSince(99); err != ErrCannotCompute {
		t.Fatalf("ChangesSince(99) error = %v, want ErrCannotCompute", err)
	}
}

func TestOptimizeInvalidatesOlderChangesSince(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	coord := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	_ = ctx.AddArtifact(coord, record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: coordinate.UINFO(coord)}}})
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	stale := ctx.CommitSeq() - 1

	if err := ctx.Optimize(1); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	if _, _, err := ctx.ChangesSince(stale); err != ErrCannotCompute {
		t.Fatalf("ChangesSince(%d) after Optimize error = %v, want ErrCannotCompute", stale, err)
	}
}

func TestOpenTakesExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	defer ctx.Close()

	if _, err := Open(dir, testRegistry(), nil); err != ErrDirectoryLocked {
		t.Fatalf("second Open error = %v, want ErrDirectoryLocked", err)
	}
}

func TestCloseThenUseReturnsErrClosed(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	coord := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	if err := ctx.AddArtifact(coord, record.Record{}); err != ErrClosed {
		t.Fatalf("AddArtifact after Close error = %v, want ErrClosed", err)
	}
}

func TestDocumentsLogPersistsAcrossReopenPath(t *testing.T) {
	dir := t.TempDir()
	ctx := mustOpen(t, dir)

	coord := coordinate.Coordinate{GroupID: "org.example", ArtifactID: "a", Version: "1.0", Extension: "jar"}
	_ = ctx.AddArtifact(coord, record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: coordinate.UINFO(coord)}}})
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logPath := filepath.Join(dir, documentsName)
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("documents log missing after Close: %v", err)
	}

	ctx2 := mustOpen(t, dir)
	defer ctx2.Close()
	searcher, err := ctx2.AcquireSearcher()
	if err != nil {
		t.Fatalf("AcquireSearcher: %v", err)
	}
	defer ctx2.ReleaseSearcher(searcher)
	if len(searcher.Records) != 1 || searcher.Records[0].UINFO() != coordinate.UINFO(coord) {
		t.Fatalf("records after reopen = %+v, want one record for %s", searcher.Records, coordinate.UINFO(coord))
	}
}
