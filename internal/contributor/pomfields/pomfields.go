// Package pomfields implements the contributor that reads name, description,
// and packaging from an artifact's POM file, when present.
package pomfields

import (
	"encoding/xml"
	"fmt"
	"os"

	"repoindex/internal/contributor"
	"repoindex/internal/record"
)

// Contributor populates POM-derived fields. Absence of a POM is not an
// error: plenty of artifacts (classifiers, checksums) have none.
type Contributor struct{}

// New creates the POM-fields contributor.
func New() *Contributor { return &Contributor{} }

func (c *Contributor) ID() string { return "pomfields" }

type pomProject struct {
	Packaging   string `xml:"packaging"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

func (c *Contributor) Populate(ctx *contributor.ArtifactContext) {
	if ctx.PomFile == "" {
		return
	}

	data, err := os.ReadFile(ctx.PomFile) //nolint:gosec // path comes from the scanner's own walk
	if err != nil {
		ctx.Info.AddError(fmt.Errorf("pomfields: read %s: %w", ctx.PomFile, err))
		return
	}

	var p pomProject
	if err := xml.Unmarshal(data, &p); err != nil {
		ctx.Info.AddError(fmt.Errorf("pomfields: parse %s: %w", ctx.PomFile, err))
		return
	}

	if p.Packaging != "" {
		ctx.Info.Packaging = p.Packaging
	}
	ctx.Info.Name = p.Name
	ctx.Info.Description = p.Description
}

func (c *Contributor) UpdateDocument(info record.ArtifactInfo, rec *record.Record) {
	if info.Name != "" {
		rec.Set(record.Field{Name: record.FieldName, Value: info.Name, Stored: true, Tokenized: true})
	}
	if info.Description != "" {
		rec.Set(record.Field{Name: record.FieldDescription, Value: info.Description, Stored: true, Tokenized: true})
	}
}

func (c *Contributor) UpdateArtifactInfo(rec record.Record, info *record.ArtifactInfo) {
	if v, ok := rec.Get(record.FieldName); ok {
		info.Name = v
	}
	if v, ok := rec.Get(record.FieldDescription); ok {
		info.Description = v
	}
}
