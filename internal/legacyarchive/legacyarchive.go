// Package legacyarchive rebuilds a context's live documents into a
// legacy-schema index directory and zips it (spec §4.7). The legacy index
// is built in a temporary indexctx.Context so the rebuild can call Optimize
// freely without touching the source context's own change history — the
// source context's incremental bookkeeping (spec §4.5's ordering note)
// must survive a legacy publication untouched.
package legacyarchive

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	kzip "github.com/klauspost/compress/flate"

	"repoindex/internal/contributor"
	"repoindex/internal/coordinate"
	"repoindex/internal/indexctx"
	"repoindex/internal/logging"
)

const timestampEntryName = "timestamp"

func init() {
	// archive/zip defaults Deflate to a moderate compression level; spec
	// §4.7 requires level 9, so register klauspost's flate (the same
	// compression library the teacher uses for its chunk files) as the
	// Deflate implementation at maximum compression.
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return kzip.NewWriter(w, kzip.BestCompression)
	})
}

// Source is the subset of *indexctx.Context the legacy writer reads from.
type Source interface {
	AcquireSearcher() (*indexctx.Searcher, error)
	ReleaseSearcher(s *indexctx.Searcher) error
}

// Write rebuilds source's live documents into a legacy-schema index using
// registry's LegacyUpdater contributors, force-merges to maxSegments (when
// there is at least one document), and writes a level-9 zip archive to
// destZipPath. The temporary working
// directory is always removed, on every exit path.
func Write(source Source, registry *contributor.Registry, maxSegments int, destZipPath string, logger *slog.Logger) (err error) {
	logger = logging.Default(logger).With("component", "legacyarchive")

	tmpDir, err := os.MkdirTemp("", "repoindex-legacy-*")
	if err != nil {
		return fmt.Errorf("legacyarchive: create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			logger.Warn("failed to remove temporary legacy index directory", "dir", tmpDir, "err", rmErr)
		}
	}()

	legacyCtx, err := indexctx.Open(tmpDir, registry, logger)
	if err != nil {
		return fmt.Errorf("legacyarchive: open temporary context: %w", err)
	}
	defer legacyCtx.Close()

	searcher, err := source.AcquireSearcher()
	if err != nil {
		return fmt.Errorf("legacyarchive: acquire source searcher: %w", err)
	}
	defer source.ReleaseSearcher(searcher)

	added := 0
	for _, rec := range searcher.Records {
		if rec.IsDescriptor() {
			continue
		}
		info := registry.BuildArtifactInfo(rec)
		legacyRec := registry.BuildLegacyRecord(info, rec.UINFO())
		coord, err := coordinate.ParseUINFO(rec.UINFO())
		if err != nil {
			return fmt.Errorf("legacyarchive: parse uinfo %q: %w", rec.UINFO(), err)
		}
		if err := legacyCtx.AddArtifact(coord, legacyRec); err != nil {
			return fmt.Errorf("legacyarchive: add artifact %s: %w", rec.UINFO(), err)
		}
		added++
	}

	if err := legacyCtx.Commit(); err != nil {
		return fmt.Errorf("legacyarchive: commit: %w", err)
	}
	// Optimize always writes a documents log; with no documents the
	// archive holds only the timestamp entry.
	if added > 0 {
		if err := legacyCtx.Optimize(maxSegments); err != nil {
			return fmt.Errorf("legacyarchive: optimize: %w", err)
		}
	}

	return zipDirectory(tmpDir, destZipPath)
}

// zipDirectory writes every regular file directly under dir into a level-9
// zip at destPath, in the directory's natural listing order, guaranteeing
// the timestamp entry is present even if some future filter would hide it.
// The zip itself is published atomically (temp-file + rename).
func zipDirectory(dir, destPath string) (err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("legacyarchive: read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	hasTimestamp := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == ".lock" || e.Name() == "context.id" {
			continue
		}
		names = append(names, e.Name())
		if e.Name() == timestampEntryName {
			hasTimestamp = true
		}
	}
	sort.Strings(names)
	if !hasTimestamp {
		return fmt.Errorf("legacyarchive: %s: timestamp file missing from legacy index directory", dir)
	}

	tmpZip, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpZip.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmpZip)
	for _, name := range names {
		if err := addZipEntry(zw, dir, name); err != nil {
			zw.Close()
			tmpZip.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		tmpZip.Close()
		return fmt.Errorf("legacyarchive: close zip writer: %w", err)
	}
	if err := tmpZip.Sync(); err != nil {
		tmpZip.Close()
		return err
	}
	if err := tmpZip.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

func addZipEntry(zw *zip.Writer, dir, name string) error {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("legacyarchive: stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(path) //nolint:gosec // path is built from the temp directory's own listing
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
