package minimal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"repoindex/internal/contributor"
	"repoindex/internal/coordinate"
	"repoindex/internal/record"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestPopulateFillsSizeModifiedAndSHA1(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "demo-1.0.jar", "jar bytes")

	ctx := &contributor.ArtifactContext{ArtifactFile: path, Coordinate: coordinate.Coordinate{Extension: "jar"}}
	New().Populate(ctx)

	if len(ctx.Info.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", ctx.Info.Errors)
	}
	if ctx.Info.Size != int64(len("jar bytes")) {
		t.Errorf("size = %d, want %d", ctx.Info.Size, len("jar bytes"))
	}
	if ctx.Info.SHA1 == "" {
		t.Error("SHA1 not populated")
	}
	if ctx.Info.Packaging != "jar" {
		t.Errorf("packaging = %q, want jar (defaulted from extension)", ctx.Info.Packaging)
	}
	if time.Since(ctx.Info.LastModified) > time.Hour {
		t.Errorf("last modified looks wrong: %v", ctx.Info.LastModified)
	}
}

func TestPopulateMissingArtifactFileRecordsError(t *testing.T) {
	ctx := &contributor.ArtifactContext{ArtifactFile: "", Coordinate: coordinate.Coordinate{}}
	New().Populate(ctx)
	if len(ctx.Info.Errors) == 0 {
		t.Fatal("expected an error for an empty artifact file path")
	}
}

func TestPopulateNonexistentArtifactFileRecordsError(t *testing.T) {
	ctx := &contributor.ArtifactContext{ArtifactFile: filepath.Join(t.TempDir(), "missing.jar")}
	New().Populate(ctx)
	if len(ctx.Info.Errors) == 0 {
		t.Fatal("expected a stat error")
	}
}

func TestUpdateDocumentAndUpdateArtifactInfoRoundTrip(t *testing.T) {
	info := record.ArtifactInfo{
		LastModified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Size:         42,
		SHA1:         "deadbeef",
		Packaging:    "jar",
	}

	var rec record.Record
	c := New()
	c.UpdateDocument(info, &rec)

	var got record.ArtifactInfo
	c.UpdateArtifactInfo(rec, &got)

	if !got.LastModified.Equal(info.LastModified) {
		t.Errorf("lastModified = %v, want %v", got.LastModified, info.LastModified)
	}
	if got.Size != info.Size {
		t.Errorf("size = %d, want %d", got.Size, info.Size)
	}
	if got.SHA1 != info.SHA1 {
		t.Errorf("sha1 = %q, want %q", got.SHA1, info.SHA1)
	}
	if got.Packaging != info.Packaging {
		t.Errorf("packaging = %q, want %q", got.Packaging, info.Packaging)
	}
}

func TestUpdateLegacyDocumentUsesSingleLetterFieldNames(t *testing.T) {
	info := record.ArtifactInfo{
		LastModified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Size:         7,
		SHA1:         "cafebabe",
		Packaging:    "war",
	}

	var rec record.Record
	New().UpdateLegacyDocument(info, &rec)

	checks := map[string]string{
		"m": "1709294400000",
		"s": "7",
		"1": "cafebabe",
		"p": "war",
	}
	for field, want := range checks {
		got, ok := rec.Get(field)
		if !ok {
			t.Errorf("legacy field %q missing", field)
			continue
		}
		if got != want {
			t.Errorf("legacy field %q = %q, want %q", field, got, want)
		}
	}
}
