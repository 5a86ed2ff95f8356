// Package record defines the artifact record: a typed, flagged field
// mapping produced by the scanner and field contributors, and the
// ArtifactInfo the contributors populate on the way there.
package record

import (
	"errors"
	"time"

	"repoindex/internal/coordinate"
)

// Well-known field names. Unknown field names encountered while reading a
// record back MUST be preserved verbatim by round-tripping readers.
const (
	FieldDescriptor  = "DESCRIPTOR"
	FieldUINFO       = "UINFO"
	FieldLastModified = "LASTMOD"
	FieldSize        = "SIZE"
	FieldSHA1        = "SHA1"
	FieldPackaging   = "PACKAGING"
	FieldName        = "NAME"
	FieldDescription = "DESCRIPTION"
	FieldClassnames  = "CLASSNAMES"

	// DescriptorToken is the value carried by the FieldDescriptor sentinel
	// field that identifies the distinguished descriptor record.
	DescriptorToken = "NexusIndex"
)

// ArtifactInfo is the mutable, in-progress view of an artifact that
// contributors enrich during populate(). It is converted to a Record by
// updateDocument once all contributors have run.
type ArtifactInfo struct {
	Coordinate coordinate.Coordinate

	LastModified time.Time
	Size         int64
	SHA1         string
	Packaging    string
	Name         string
	Description  string
	Classnames   []string

	// Extra carries contributor-specific fields that don't have a promoted
	// struct field (e.g. POM-derived properties). Keys become field names.
	Extra map[string]string

	// Errors accumulates PerArtifactError values raised by contributors.
	// It never aborts the scan and is never propagated past the scanning
	// listener.
	Errors []error
}

// AddError records a non-fatal, per-artifact error.
func (a *ArtifactInfo) AddError(err error) {
	if err == nil {
		return
	}
	a.Errors = append(a.Errors, err)
}

// CalculateGav derives the canonical coordinate from the populated info,
// defaulting Extension from Packaging when the scanner could not determine
// it from the filename alone.
func CalculateGav(info ArtifactInfo) coordinate.Coordinate {
	c := info.Coordinate
	if c.Extension == "" && info.Packaging != "" {
		c.Extension = info.Packaging
	}
	return c
}

// Field is one stored/indexed/tokenized field of a record, matching the
// wire storeFlags byte: bit0=indexed, bit1=tokenized, bit2=stored.
type Field struct {
	Name      string
	Value     string
	Indexed   bool
	Tokenized bool
	Stored    bool
}

// Searchable reports whether the field participates in full-text search,
// i.e. it is indexed in some form (exact or tokenized).
func (f Field) Searchable() bool { return f.Indexed || f.Tokenized }

// Record is a typed mapping from field name to value, built by contributors
// via updateDocument and consumed by updateArtifactInfo on the read path.
// Field order is insignificant for equality (spec §8 property 3).
type Record struct {
	Fields []Field
}

var ErrFieldNotFound = errors.New("field not found")

// NewDescriptorRecord returns the distinguished descriptor record: UINFO is
// absent, and the sentinel field identifies it. Readers key on this field
// name, not ordinal position, so it tolerates reordering.
func NewDescriptorRecord(contextID, version string) Record {
	return Record{Fields: []Field{
		{Name: FieldDescriptor, Value: DescriptorToken, Stored: true, Indexed: true},
		{Name: "CONTEXT_ID", Value: contextID, Stored: true},
		{Name: "VERSION", Value: version, Stored: true},
	}}
}

// IsDescriptor reports whether this record is the distinguished descriptor
// record, identified by the sentinel field name+value (not by position).
func (r Record) IsDescriptor() bool {
	v, ok := r.Get(FieldDescriptor)
	return ok && v == DescriptorToken
}

// Get returns the value of the named field and whether it was present.
// When a field name is repeated, the first occurrence wins.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// UINFO returns the record's UINFO field, or "" if absent (i.e. this is the
// descriptor record).
func (r Record) UINFO() string {
	v, _ := r.Get(FieldUINFO)
	return v
}

// Set upserts a field by name, preserving first-seen order for existing
// names and appending new ones at the end.
func (r *Record) Set(f Field) {
	for i := range r.Fields {
		if r.Fields[i].Name == f.Name {
			r.Fields[i] = f
			return
		}
	}
	r.Fields = append(r.Fields, f)
}

// Equal compares two records for field-equality, ignoring field order —
// the round-trip property (spec §8 property 3) is defined modulo ordering.
func (r Record) Equal(other Record) bool {
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	index := make(map[string]Field, len(other.Fields))
	for _, f := range other.Fields {
		index[f.Name] = f
	}
	for _, f := range r.Fields {
		of, ok := index[f.Name]
		if !ok || of != f {
			return false
		}
	}
	return true
}
