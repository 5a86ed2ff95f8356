// Package contributor defines the pluggable field-contributor capability
// that enriches artifact records with domain-specific fields, replacing
// virtual-dispatch inheritance with an ordered collection of capability
// objects held by the indexing context.
package contributor

import (
	"repoindex/internal/coordinate"
	"repoindex/internal/record"
)

// ArtifactContext is the tuple a scanner produces for one coalesced
// artifact: the sibling files discovered for its coordinate, plus the
// ArtifactInfo that contributors enrich in place.
type ArtifactContext struct {
	PomFile      string // "" if absent
	ArtifactFile string // "" if absent
	MetadataFile string // "" if absent
	Info         record.ArtifactInfo
	Coordinate   coordinate.Coordinate
}

// Contributor is a capability object that, given an artifact, contributes
// typed fields to its index record. Contributors are registered once per
// context, in a stable order; populate runs to completion for all
// contributors before updateDocument runs for any, so contributors may
// read each other's enrichments.
//
// Failures inside a single contributor are confined to the artifact's
// error list (ArtifactContext.Info.Errors) and never abort the scan.
type Contributor interface {
	// ID returns a stable, unique identifier for this contributor.
	ID() string

	// Populate enriches ctx.Info from on-disk evidence (POM, archive
	// contents, metadata). Non-fatal errors are accumulated via
	// ctx.Info.AddError, never returned.
	Populate(ctx *ArtifactContext)

	// UpdateDocument writes this contributor's typed fields into rec.
	UpdateDocument(info record.ArtifactInfo, rec *record.Record)

	// UpdateArtifactInfo is the inverse of UpdateDocument, used when
	// reading a record back.
	UpdateArtifactInfo(rec record.Record, info *record.ArtifactInfo)
}

// LegacyUpdater is an optional capability implemented by contributors that
// participate in legacy-schema archive rebuilds (spec §4.7). Tested by tag
// (type assertion), not by a separate registration list.
type LegacyUpdater interface {
	// UpdateLegacyDocument writes this contributor's fields using the
	// legacy schema into rec.
	UpdateLegacyDocument(info record.ArtifactInfo, rec *record.Record)
}

// Registry holds an ordered, immutable-after-construction set of
// contributors. Order is preserved exactly as registered.
type Registry struct {
	contributors []Contributor
}

// NewRegistry builds a registry from contributors in the given order.
func NewRegistry(contributors ...Contributor) *Registry {
	cp := make([]Contributor, len(contributors))
	copy(cp, contributors)
	return &Registry{contributors: cp}
}

// Contributors returns the ordered contributor set.
func (r *Registry) Contributors() []Contributor {
	return r.contributors
}

// Populate runs Populate on every contributor, in order, for ctx. It does
// not stop on a contributor error since contributors never return one —
// they record failures into ctx.Info.Errors themselves.
func (r *Registry) Populate(ctx *ArtifactContext) {
	for _, c := range r.contributors {
		c.Populate(ctx)
	}
}

// BuildRecord runs UpdateDocument on every contributor, in order, against a
// fresh record seeded with the UINFO field.
func (r *Registry) BuildRecord(info record.ArtifactInfo, uinfo string) record.Record {
	rec := record.Record{}
	rec.Set(record.Field{Name: record.FieldUINFO, Value: uinfo, Stored: true, Indexed: true})
	for _, c := range r.contributors {
		c.UpdateDocument(info, &rec)
	}
	return rec
}

// BuildArtifactInfo runs UpdateArtifactInfo on every contributor, in order,
// against rec, the inverse of BuildRecord.
func (r *Registry) BuildArtifactInfo(rec record.Record) record.ArtifactInfo {
	var info record.ArtifactInfo
	for _, c := range r.contributors {
		c.UpdateArtifactInfo(rec, &info)
	}
	return info
}

// BuildLegacyRecord runs UpdateLegacyDocument on every contributor that
// implements LegacyUpdater, in order. Contributors without legacy support
// are skipped.
func (r *Registry) BuildLegacyRecord(info record.ArtifactInfo, uinfo string) record.Record {
	rec := record.Record{}
	rec.Set(record.Field{Name: record.FieldUINFO, Value: uinfo, Stored: true, Indexed: true})
	for _, c := range r.contributors {
		if lu, ok := c.(LegacyUpdater); ok {
			lu.UpdateLegacyDocument(info, &rec)
		}
	}
	return rec
}

// IDs returns the stable identifiers of every registered contributor, in
// order. The incremental handler compares this set against the set
// recorded in the descriptor to detect a contributor-set mismatch.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.contributors))
	for i, c := range r.contributors {
		ids[i] = c.ID()
	}
	return ids
}
