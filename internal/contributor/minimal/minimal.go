// Package minimal implements the contributor that fills in the record's
// fixed required subset: last-modified time, file size, and SHA-1 digest
// computed from the artifact file on disk, plus the packaging default.
package minimal

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is the artifact repository's conventional digest, not used for security
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"repoindex/internal/contributor"
	"repoindex/internal/record"
)

// Contributor computes the required fields every record carries.
type Contributor struct{}

// New creates the minimal-fields contributor.
func New() *Contributor { return &Contributor{} }

func (c *Contributor) ID() string { return "minimal" }

func (c *Contributor) Populate(ctx *contributor.ArtifactContext) {
	if ctx.ArtifactFile == "" {
		ctx.Info.AddError(fmt.Errorf("minimal: no artifact file for %s", ctx.Coordinate))
		return
	}

	fi, err := os.Stat(ctx.ArtifactFile)
	if err != nil {
		ctx.Info.AddError(fmt.Errorf("minimal: stat %s: %w", ctx.ArtifactFile, err))
		return
	}
	ctx.Info.Size = fi.Size()
	ctx.Info.LastModified = fi.ModTime().UTC()

	sum, err := sha1File(ctx.ArtifactFile)
	if err != nil {
		ctx.Info.AddError(fmt.Errorf("minimal: sha1 %s: %w", ctx.ArtifactFile, err))
	} else {
		ctx.Info.SHA1 = sum
	}

	if ctx.Info.Packaging == "" {
		ctx.Info.Packaging = ctx.Coordinate.Extension
	}
}

func (c *Contributor) UpdateDocument(info record.ArtifactInfo, rec *record.Record) {
	rec.Set(record.Field{Name: record.FieldLastModified, Value: strconv.FormatInt(info.LastModified.UnixMilli(), 10), Stored: true, Indexed: true})
	rec.Set(record.Field{Name: record.FieldSize, Value: strconv.FormatInt(info.Size, 10), Stored: true, Indexed: true})
	if info.SHA1 != "" {
		rec.Set(record.Field{Name: record.FieldSHA1, Value: info.SHA1, Stored: true, Indexed: true})
	}
	if info.Packaging != "" {
		rec.Set(record.Field{Name: record.FieldPackaging, Value: info.Packaging, Stored: true, Indexed: true})
	}
}

// UpdateLegacyDocument writes this contributor's fields under the legacy
// schema's single-letter field names (spec §4.7), satisfying
// contributor.LegacyUpdater.
func (c *Contributor) UpdateLegacyDocument(info record.ArtifactInfo, rec *record.Record) {
	rec.Set(record.Field{Name: "m", Value: strconv.FormatInt(info.LastModified.UnixMilli(), 10), Stored: true, Indexed: true})
	rec.Set(record.Field{Name: "s", Value: strconv.FormatInt(info.Size, 10), Stored: true, Indexed: true})
	if info.SHA1 != "" {
		rec.Set(record.Field{Name: "1", Value: info.SHA1, Stored: true, Indexed: true})
	}
	if info.Packaging != "" {
		rec.Set(record.Field{Name: "p", Value: info.Packaging, Stored: true, Indexed: true})
	}
}

func (c *Contributor) UpdateArtifactInfo(rec record.Record, info *record.ArtifactInfo) {
	if v, ok := rec.Get(record.FieldLastModified); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.LastModified = time.UnixMilli(ms).UTC()
		}
	}
	if v, ok := rec.Get(record.FieldSize); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.Size = n
		}
	}
	if v, ok := rec.Get(record.FieldSHA1); ok {
		info.SHA1 = v
	}
	if v, ok := rec.Get(record.FieldPackaging); ok {
		info.Packaging = v
	}
}

func sha1File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is produced by the scanner walking the repository tree
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec // see import comment
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
