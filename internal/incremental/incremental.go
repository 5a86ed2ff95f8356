// Package incremental implements the chunk-publication state machine
// (spec §4.5): given a context's change history and the descriptor's
// recorded publication state, it decides whether to skip, emit a chunk, or
// force a full regeneration.
package incremental

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"repoindex/internal/descriptor"
	"repoindex/internal/record"
)

// State is the handler's view of the publication chain's health.
type State int

const (
	// UNINIT means no usable chain-id/chunk-counter exists yet.
	UNINIT State = iota
	// READY means the descriptor's incremental state can be trusted.
	READY
	// BROKEN means the descriptor disagreed with the live context and a
	// full regeneration was forced.
	BROKEN
)

func (s State) String() string {
	switch s {
	case UNINIT:
		return "UNINIT"
	case READY:
		return "READY"
	case BROKEN:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

// lastSeqKey and contributorIDsKey are descriptor Extra fields this
// package owns; they are not part of spec §6's documented key table but
// round-trip through Descriptor.Extra like any operator-added property.
const (
	lastSeqKey        = "x-repoindex.last-commit-seq"
	contributorIDsKey = "x-repoindex.contributor-ids"
)

// context is the subset of *indexctx.Context the handler needs. Declared
// as an interface here (rather than importing indexctx) to keep this
// package testable without a real durable context and to avoid a cycle
// with the packer, which depends on both.
type context interface {
	CommitSeq() int64
	ChangesSince(seq int64) (upserts []record.Record, deletes []string, err error)
}

// Handler drives the state machine. RetainedChunks bounds how many
// historical chunk markers the descriptor keeps (spec §9 open question).
type Handler struct {
	RetainedChunks int
}

// New creates a handler retaining the last retainedChunks chunk markers.
func New(retainedChunks int) *Handler {
	if retainedChunks <= 0 {
		retainedChunks = 30
	}
	return &Handler{RetainedChunks: retainedChunks}
}

// InitializeProperties resets desc to a fresh chain: chunk-counter=0, a new
// chain-id, and no retained chunk markers. Called when the descriptor is
// missing or corrupt, or when ComputeIncremental forces a reset.
func (h *Handler) InitializeProperties(desc *descriptor.Descriptor) {
	desc.ChainID = uuid.NewString()
	desc.ChunkCounter = 0
	desc.Chunks = make(map[int]string)
	delete(desc.Extra, lastSeqKey)
}

// RecordContributorIDs stamps the live contributor set into desc so a
// later ComputeIncremental call can detect a mismatch (spec §4.5).
func RecordContributorIDs(desc *descriptor.Descriptor, ids []string) {
	if desc.Extra == nil {
		desc.Extra = make(map[string]string)
	}
	desc.Extra[contributorIDsKey] = strings.Join(ids, ",")
}

func recordedContributorIDs(desc *descriptor.Descriptor) ([]string, bool) {
	v, ok := desc.Extra[contributorIDsKey]
	if !ok {
		return nil, false
	}
	if v == "" {
		return []string{}, true
	}
	return strings.Split(v, ","), true
}

// Result is the outcome of ComputeIncremental.
type Result struct {
	// CannotCompute is true when the chain cannot be trusted; the caller
	// must InitializeProperties and regenerate a full dump instead.
	CannotCompute bool
	// Upserts/Deletes are both empty (possibly nil) when there is nothing to
	// publish, and at least one is non-empty when a chunk numbered
	// ChunkNumber should be emitted; CannotCompute, not nil-ness, signals
	// a reset.
	Upserts []record.Record
	Deletes []string
	// ChunkNumber is the descriptor's chunk-counter at call time; the
	// caller names the emitted chunk file with it, then advances the
	// counter via Advance.
	ChunkNumber int
}

// ComputeIncremental decides what to publish next, given the live context
// ctx and the descriptor's recorded state. liveContributorIDs is the
// context's current ordered contributor ID set (spec §4.2/§4.5).
func (h *Handler) ComputeIncremental(ctx context, desc *descriptor.Descriptor, liveContributorIDs []string) Result {
	if desc.ChainID == "" {
		return Result{CannotCompute: true}
	}

	recorded, ok := recordedContributorIDs(desc)
	if !ok || !equalIDs(recorded, liveContributorIDs) {
		return Result{CannotCompute: true}
	}

	lastSeqStr, ok := desc.Extra[lastSeqKey]
	if !ok {
		return Result{CannotCompute: true}
	}
	lastSeq, err := strconv.ParseInt(lastSeqStr, 10, 64)
	if err != nil {
		return Result{CannotCompute: true}
	}

	if lastSeq > ctx.CommitSeq() {
		// The on-disk commit is older than what the descriptor last saw.
		return Result{CannotCompute: true}
	}

	upserts, deletes, err := ctx.ChangesSince(lastSeq)
	if err != nil {
		return Result{CannotCompute: true}
	}

	return Result{Upserts: upserts, Deletes: deletes, ChunkNumber: desc.ChunkCounter}
}

// Advance records a successfully emitted chunk: advances chunk-counter,
// stores the chunk's chain-id marker, evicts the oldest marker beyond the
// retention window, and stamps the new last-seen commit sequence.
func (h *Handler) Advance(desc *descriptor.Descriptor, emittedChunkNumber int, newCommitSeq int64) {
	if desc.Chunks == nil {
		desc.Chunks = make(map[int]string)
	}
	desc.Chunks[emittedChunkNumber] = desc.ChainID
	desc.ChunkCounter = emittedChunkNumber + 1
	desc.EvictOldest(h.RetainedChunks)
	if desc.Extra == nil {
		desc.Extra = make(map[string]string)
	}
	desc.Extra[lastSeqKey] = strconv.FormatInt(newCommitSeq, 10)
}

// RecordNoChange stamps the current commit sequence without emitting a
// chunk or advancing the counter, for the "no changes since last
// publication" branch (spec §4.5).
func (h *Handler) RecordNoChange(desc *descriptor.Descriptor, currentCommitSeq int64) {
	if desc.Extra == nil {
		desc.Extra = make(map[string]string)
	}
	desc.Extra[lastSeqKey] = strconv.FormatInt(currentCommitSeq, 10)
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
