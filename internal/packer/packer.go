// Package packer drives one publication cycle (spec §4.8): scanning is the
// caller's concern (or already reflected in the indexing context); this
// package takes a committed context and produces the v1 dump, incremental
// chunks, legacy archive, descriptor, and checksums under a target
// directory, atomically and in the ordering spec §4.8 requires.
package packer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"repoindex/internal/config"
	"repoindex/internal/descriptor"
	"repoindex/internal/digest"
	"repoindex/internal/dumpformat"
	"repoindex/internal/incremental"
	"repoindex/internal/indexctx"
	"repoindex/internal/legacyarchive"
	"repoindex/internal/logging"
	"repoindex/internal/record"
)

const indexPrefix = "nexus-maven-repository-index"

// Error kinds (spec §7), matched by the CLI driver to choose an exit code.
var (
	ErrInvalidArgument = errors.New("packer: invalid argument")
	ErrIOFailure       = errors.New("packer: io failure")
	ErrIndexCorruption = errors.New("packer: index corruption forced regeneration")
)

// Result reports what a Pack call actually published, including whether a
// corrupt descriptor forced a full regeneration (spec §6 exit code 3).
type Result struct {
	ForcedRegeneration bool
	ChunkEmitted       bool
	ChunkNumber        int
	LegacyWritten      bool
	V1Written          bool
}

// Pack runs one publication cycle against an already-open, already-committed
// indexing context.
func Pack(ctx *indexctx.Context, cfg *config.PackerConfig, logger *slog.Logger) (Result, error) {
	logger = logging.Default(logger).With("component", "packer")
	var result Result

	if err := validateTargetDir(cfg.TargetDir); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	sidecarPath := filepath.Join(cfg.IndexDir, "nexus-maven-repository-index.properties")
	targetDescPath := filepath.Join(cfg.TargetDir, indexPrefix+".properties")

	loadPath := sidecarPath
	if cfg.SeedFromTarget {
		loadPath = targetDescPath
	}

	desc, corrupt := loadOrFreshDescriptor(loadPath)
	handler := incremental.New(cfg.RetainedChunks)
	liveIDs := ctx.GetIndexCreators().IDs()

	if corrupt {
		handler.InitializeProperties(desc)
		incremental.RecordContributorIDs(desc, liveIDs)
		desc.IndexID = ctx.ID()
		result.ForcedRegeneration = true
		logger.Warn("descriptor missing or corrupt, forcing full regeneration", "path", loadPath)
	}
	if desc.IndexID == "" {
		desc.IndexID = ctx.ID()
	}

	if cfg.Chunks && corrupt {
		// A just-reset chain has no baseline to diff against; the full
		// dump below already covers everything, so establish the
		// baseline commit here instead of forcing a spurious chunk.
		handler.RecordNoChange(desc, ctx.CommitSeq())
	}

	if cfg.Chunks && !corrupt {
		res := handler.ComputeIncremental(ctx, desc, liveIDs)
		switch {
		case res.CannotCompute:
			handler.InitializeProperties(desc)
			incremental.RecordContributorIDs(desc, liveIDs)
			handler.RecordNoChange(desc, ctx.CommitSeq())
			result.ForcedRegeneration = true
			logger.Warn("incremental handler cannot compute, resetting chain", "chainID", desc.ChainID)
		case len(res.Upserts) == 0 && len(res.Deletes) == 0:
			handler.RecordNoChange(desc, ctx.CommitSeq())
			logger.Info("no changes since last publication, skipping chunk")
		default:
			chunkPath := filepath.Join(cfg.TargetDir, fmt.Sprintf("%s.%d.gz", indexPrefix, res.ChunkNumber))
			if err := writeChunk(chunkPath, ctx.ID(), res.Upserts, res.Deletes); err != nil {
				return result, fmt.Errorf("%w: write chunk: %v", ErrIOFailure, err)
			}
			if cfg.Checksums {
				if err := digest.WriteSiblings(chunkPath); err != nil {
					return result, fmt.Errorf("%w: checksum chunk: %v", ErrIOFailure, err)
				}
			}
			handler.Advance(desc, res.ChunkNumber, ctx.CommitSeq())
			result.ChunkEmitted = true
			result.ChunkNumber = res.ChunkNumber
			logger.Info("chunk emitted", "number", res.ChunkNumber, "upserts", len(res.Upserts), "deletes", len(res.Deletes))
		}
	}

	if cfg.Format == config.FormatLegacy || cfg.Format == config.FormatBoth {
		desc.LegacyTimestamp = descriptor.FormatTimestamp(ctx.LastCommitTime())
		zipPath := filepath.Join(cfg.TargetDir, indexPrefix+".zip")
		if err := legacyarchive.Write(ctx, ctx.GetIndexCreators(), 1, zipPath, logger); err != nil {
			return result, fmt.Errorf("%w: write legacy archive: %v", ErrIOFailure, err)
		}
		if cfg.Checksums {
			if err := digest.WriteSiblings(zipPath); err != nil {
				return result, fmt.Errorf("%w: checksum legacy archive: %v", ErrIOFailure, err)
			}
		}
		result.LegacyWritten = true
	}

	if cfg.Format == config.FormatV1 || cfg.Format == config.FormatBoth {
		desc.Timestamp = descriptor.FormatTimestamp(ctx.LastCommitTime())
		dumpPath := filepath.Join(cfg.TargetDir, indexPrefix+".gz")
		if err := writeFullDump(dumpPath, ctx); err != nil {
			return result, fmt.Errorf("%w: write full dump: %v", ErrIOFailure, err)
		}
		if cfg.Checksums {
			if err := digest.WriteSiblings(dumpPath); err != nil {
				return result, fmt.Errorf("%w: checksum full dump: %v", ErrIOFailure, err)
			}
		}
		result.V1Written = true
	}

	if err := desc.Save(sidecarPath); err != nil {
		return result, fmt.Errorf("%w: save sidecar descriptor: %v", ErrIOFailure, err)
	}
	if err := desc.Save(targetDescPath); err != nil {
		return result, fmt.Errorf("%w: save target descriptor: %v", ErrIOFailure, err)
	}
	if cfg.Checksums {
		if err := digest.WriteSiblings(targetDescPath); err != nil {
			return result, fmt.Errorf("%w: checksum descriptor: %v", ErrIOFailure, err)
		}
	}

	return result, nil
}

func validateTargetDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return nil
}

func loadOrFreshDescriptor(path string) (*descriptor.Descriptor, bool) {
	desc, err := descriptor.Load(path)
	if err != nil {
		return descriptor.New(), true
	}
	return desc, false
}

// writeFullDump streams the descriptor record followed by every live
// document into a gzip-wrapped v1 stream at a temporary sibling, renamed
// into place on success.
func writeFullDump(path string, ctx *indexctx.Context) error {
	searcher, err := ctx.AcquireSearcher()
	if err != nil {
		return err
	}
	defer ctx.ReleaseSearcher(searcher)

	return atomicGzipWrite(path, searcher.Timestamp, func(w io.Writer) error {
		descRec := record.NewDescriptorRecord(ctx.ID(), "1")
		if err := dumpformat.WriteRecord(w, descRec); err != nil {
			return err
		}
		for _, rec := range searcher.Records {
			if err := dumpformat.WriteRecord(w, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeChunk streams the descriptor record, then every upserted record,
// then a tombstone record per deleted UINFO (a record carrying only the
// UINFO field, recognizable by having no other stored fields).
func writeChunk(path string, contextID string, upserts []record.Record, deletes []string) error {
	return atomicGzipWrite(path, time.Now().UTC(), func(w io.Writer) error {
		descRec := record.NewDescriptorRecord(contextID, "1")
		if err := dumpformat.WriteRecord(w, descRec); err != nil {
			return err
		}
		for _, rec := range upserts {
			if err := dumpformat.WriteRecord(w, rec); err != nil {
				return err
			}
		}
		for _, uinfo := range deletes {
			tombstone := record.Record{Fields: []record.Field{{Name: record.FieldUINFO, Value: uinfo, Stored: true}}}
			if err := dumpformat.WriteRecord(w, tombstone); err != nil {
				return err
			}
		}
		return nil
	})
}

func atomicGzipWrite(path string, ts time.Time, body func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	if err = dumpformat.WriteHeader(gz, ts.UnixMilli()); err != nil {
		gz.Close()
		tmp.Close()
		return err
	}
	if err = body(gz); err != nil {
		gz.Close()
		tmp.Close()
		return err
	}
	if err = gz.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
