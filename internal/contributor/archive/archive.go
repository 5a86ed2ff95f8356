// Package archive implements the contributor that extracts class names
// from a jar/zip artifact's central directory.
package archive

import (
	"archive/zip"
	"fmt"
	"strings"

	"repoindex/internal/contributor"
	"repoindex/internal/record"
)

// Contributor populates Classnames by peeking at the artifact's zip
// central directory without extracting entries.
type Contributor struct{}

// New creates the archive classnames contributor.
func New() *Contributor { return &Contributor{} }

func (c *Contributor) ID() string { return "archive" }

func (c *Contributor) Populate(ctx *contributor.ArtifactContext) {
	if ctx.ArtifactFile == "" || !isArchiveExtension(ctx.Coordinate.Extension) {
		return
	}

	r, err := zip.OpenReader(ctx.ArtifactFile)
	if err != nil {
		// Not every "jar-looking" artifact is a real zip (e.g. corrupt or
		// renamed uploads); that's a per-artifact condition, not fatal.
		ctx.Info.AddError(fmt.Errorf("archive: open %s: %w", ctx.ArtifactFile, err))
		return
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, ".class") && !strings.Contains(f.Name, "META-INF") {
			names = append(names, "/"+strings.TrimSuffix(f.Name, ".class"))
		}
	}
	ctx.Info.Classnames = names
}

func isArchiveExtension(ext string) bool {
	switch ext {
	case "jar", "war", "ear", "zip":
		return true
	default:
		return false
	}
}

func (c *Contributor) UpdateDocument(info record.ArtifactInfo, rec *record.Record) {
	if len(info.Classnames) == 0 {
		return
	}
	rec.Set(record.Field{Name: record.FieldClassnames, Value: strings.Join(info.Classnames, "\n"), Stored: true, Tokenized: true})
}

func (c *Contributor) UpdateArtifactInfo(rec record.Record, info *record.ArtifactInfo) {
	v, ok := rec.Get(record.FieldClassnames)
	if !ok || v == "" {
		return
	}
	info.Classnames = strings.Split(v, "\n")
}
