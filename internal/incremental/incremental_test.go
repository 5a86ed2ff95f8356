package incremental

import (
	"testing"

	"repoindex/internal/descriptor"
	"repoindex/internal/record"
)

type fakeContext struct {
	commitSeq int64
	upserts   map[int64][]record.Record
	deletes   map[int64][]string
	errAtSeq  map[int64]error
}

func (f *fakeContext) CommitSeq() int64 { return f.commitSeq }

func (f *fakeContext) ChangesSince(seq int64) ([]record.Record, []string, error) {
	if err, ok := f.errAtSeq[seq]; ok {
		return nil, nil, err
	}
	return f.upserts[seq], f.deletes[seq], nil
}

func TestInitializePropertiesResetsChain(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	desc.ChainID = "old"
	desc.ChunkCounter = 7
	desc.Chunks[0] = "old"

	h.InitializeProperties(desc)

	if desc.ChainID == "" || desc.ChainID == "old" {
		t.Fatalf("ChainID not reset: %q", desc.ChainID)
	}
	if desc.ChunkCounter != 0 {
		t.Fatalf("ChunkCounter = %d, want 0", desc.ChunkCounter)
	}
	if len(desc.Chunks) != 0 {
		t.Fatalf("Chunks = %+v, want empty", desc.Chunks)
	}
}

func TestComputeIncrementalMissingChainIsCannotCompute(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	ctx := &fakeContext{commitSeq: 5}

	res := h.ComputeIncremental(ctx, desc, []string{"minimal"})
	if !res.CannotCompute {
		t.Fatal("expected CannotCompute when chain-id is missing")
	}
}

func TestComputeIncrementalContributorMismatchIsCannotCompute(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	h.InitializeProperties(desc)
	RecordContributorIDs(desc, []string{"minimal", "archive"})
	desc.Extra[lastSeqKey] = "0"

	ctx := &fakeContext{commitSeq: 1}
	res := h.ComputeIncremental(ctx, desc, []string{"minimal"})
	if !res.CannotCompute {
		t.Fatal("expected CannotCompute on contributor set mismatch")
	}
}

func TestComputeIncrementalNoChangesReturnsEmpty(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	h.InitializeProperties(desc)
	RecordContributorIDs(desc, []string{"minimal"})
	desc.Extra[lastSeqKey] = "3"

	ctx := &fakeContext{commitSeq: 3}
	res := h.ComputeIncremental(ctx, desc, []string{"minimal"})
	if res.CannotCompute {
		t.Fatal("did not expect CannotCompute")
	}
	if len(res.Upserts) != 0 || len(res.Deletes) != 0 {
		t.Fatalf("expected no changes, got upserts=%v deletes=%v", res.Upserts, res.Deletes)
	}
}

func TestComputeIncrementalReturnsChangesAndAdvance(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	h.InitializeProperties(desc)
	RecordContributorIDs(desc, []string{"minimal"})
	desc.Extra[lastSeqKey] = "1"

	rec := record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: "g|a|2.0|NA|jar"}}}
	ctx := &fakeContext{commitSeq: 2, upserts: map[int64][]record.Record{1: {rec}}}

	res := h.ComputeIncremental(ctx, desc, []string{"minimal"})
	if res.CannotCompute {
		t.Fatal("did not expect CannotCompute")
	}
	if len(res.Upserts) != 1 {
		t.Fatalf("Upserts = %+v, want 1 record", res.Upserts)
	}
	if res.ChunkNumber != 0 {
		t.Fatalf("ChunkNumber = %d, want 0", res.ChunkNumber)
	}

	h.Advance(desc, res.ChunkNumber, ctx.CommitSeq())
	if desc.ChunkCounter != 1 {
		t.Fatalf("ChunkCounter after Advance = %d, want 1", desc.ChunkCounter)
	}
	if desc.Chunks[0] != desc.ChainID {
		t.Fatalf("Chunks[0] = %q, want chain id %q", desc.Chunks[0], desc.ChainID)
	}
}

func TestComputeIncrementalStaleCommitIsCannotCompute(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	h.InitializeProperties(desc)
	RecordContributorIDs(desc, []string{"minimal"})
	desc.Extra[lastSeqKey] = "10"

	ctx := &fakeContext{commitSeq: 2}
	res := h.ComputeIncremental(ctx, desc, []string{"minimal"})
	if !res.CannotCompute {
		t.Fatal("expected CannotCompute when descriptor's last-seen commit is ahead of the live context")
	}
}

func TestChunkCounterStrictMonotonicity(t *testing.T) {
	h := New(30)
	desc := descriptor.New()
	h.InitializeProperties(desc)
	RecordContributorIDs(desc, []string{"minimal"})
	desc.Extra[lastSeqKey] = "0"

	first := desc.ChunkCounter
	h.Advance(desc, first, 1)
	second := desc.ChunkCounter
	h.Advance(desc, second, 2)
	third := desc.ChunkCounter

	if second != first+1 || third != second+1 {
		t.Fatalf("chunk counters = %d, %d, %d; want strictly increasing by 1", first, second, third)
	}
}

func TestAdvanceEvictsBeyondRetentionWindow(t *testing.T) {
	h := New(2)
	desc := descriptor.New()
	h.InitializeProperties(desc)

	h.Advance(desc, 0, 1)
	h.Advance(desc, 1, 2)
	h.Advance(desc, 2, 3)

	if len(desc.Chunks) != 2 {
		t.Fatalf("len(Chunks) = %d, want 2 (retention window)", len(desc.Chunks))
	}
	if _, ok := desc.Chunks[0]; ok {
		t.Fatal("chunk 0 should have been evicted")
	}
}
