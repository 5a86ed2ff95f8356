// Package scanner implements the depth-first repository walk (spec §4.4):
// for each artifact file discovered, it coalesces the sibling files that
// share its directory and file stem (such as its POM), runs the contributor
// populate/updateDocument phases, and hands the result to the indexing
// context. A repository metadata file is attached to an artifact only when
// it shares that artifact's file stem.
package scanner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"repoindex/internal/contributor"
	"repoindex/internal/coordinate"
	"repoindex/internal/logging"
	"repoindex/internal/record"
)

// Listener receives scan progress callbacks (spec §4.4). A nil Listener is
// valid; every method is called only if non-nil.
type Listener interface {
	ScanStarted(repositoryDir string)
	ScanningFile(path string)
	ArtifactDiscovered(info record.ArtifactInfo, errs []error)
	ScanFinished(stats Stats)
}

// NopListener implements Listener with no-ops, usable as an embeddable base.
type NopListener struct{}

func (NopListener) ScanStarted(string)                             {}
func (NopListener) ScanningFile(string)                             {}
func (NopListener) ArtifactDiscovered(record.ArtifactInfo, []error) {}
func (NopListener) ScanFinished(Stats)                              {}

// Stats summarizes one completed scan.
type Stats struct {
	FilesVisited  int
	ArtifactsSeen int
	Errors        int
}

// Target is what a scan writes discovered artifacts into. *indexctx.Context
// satisfies this without scanner importing indexctx, avoiding a cycle since
// indexctx has no need to know about scanning.
type Target interface {
	AddArtifact(coord coordinate.Coordinate, rec record.Record) error
}

// Options configures a scan.
type Options struct {
	// Includes/Excludes are doublestar glob patterns matched against paths
	// relative to the repository root. An empty Includes matches everything.
	Includes []string
	Excludes []string
}

// Scanner performs the depth-first repository walk described in spec §4.4.
type Scanner struct {
	registry *contributor.Registry
	logger   *slog.Logger
}

// New creates a scanner that populates and builds records using registry.
func New(registry *contributor.Registry, logger *slog.Logger) *Scanner {
	return &Scanner{registry: registry, logger: logging.Default(logger).With("component", "scanner")}
}

// artifactExtensions are the file extensions treated as the "primary"
// artifact file of a coalesced group; any other file in the same directory
// with the same file stem (name minus its last extension) is a sibling
// (POM, metadata, etc).
var artifactExtensions = map[string]bool{
	"jar": true, "war": true, "ear": true, "zip": true,
}

// group accumulates the sibling files discovered during the walk for one
// directory and file stem.
type group struct {
	artifactFile string
	pomFile      string
	metadataFile string
}

// Scan walks repositoryDir depth-first, coalescing sibling files by
// coordinate and writing each resulting artifact into target via
// target.AddArtifact. File-level errors are accumulated per-artifact and
// reported through listener, never aborting the scan.
func (s *Scanner) Scan(repositoryDir string, target Target, listener Listener, opts Options) (Stats, error) {
	if listener == nil {
		listener = NopListener{}
	}
	listener.ScanStarted(repositoryDir)
	s.logger.Info("scan started", "dir", repositoryDir)

	groups := make(map[string]*group)
	var order []string
	var stats Stats

	walkErr := filepath.WalkDir(repositoryDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			stats.Errors++
			s.logger.Warn("walk error", "path", path, "err", err)
			return nil //nolint:nilerr // per-file errors never abort the scan
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(repositoryDir, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if !matchesFilters(rel, opts) {
			return nil
		}

		stats.FilesVisited++
		listener.ScanningFile(path)

		dir := filepath.Dir(path)
		base := filepath.Base(path)
		ext := strings.TrimPrefix(filepath.Ext(base), ".")
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		key := filepath.Join(dir, stem)

		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}

		switch {
		case ext == "pom":
			g.pomFile = path
		case ext == "xml" && strings.Contains(strings.ToLower(base), "metadata"):
			g.metadataFile = path
		case artifactExtensions[ext]:
			g.artifactFile = path
		default:
			// Sibling checksum/signature file or an artifact with an
			// extension the group didn't anchor on yet; if no artifact
			// file has been claimed for this key, treat this file itself
			// as the artifact (covers unusual packaging extensions).
			if g.artifactFile == "" && ext != "sha1" && ext != "md5" && ext != "asc" {
				g.artifactFile = path
			}
		}
		return nil
	})
	if walkErr != nil {
		return stats, fmt.Errorf("scanner: walk %s: %w", repositoryDir, walkErr)
	}

	sort.Strings(order)
	for _, key := range order {
		g := groups[key]
		if g.artifactFile == "" && g.pomFile == "" {
			continue
		}

		anchor := g.artifactFile
		if anchor == "" {
			anchor = g.pomFile
		}
		rel, relErr := filepath.Rel(repositoryDir, anchor)
		if relErr != nil {
			rel = anchor
		}
		coord, err := coordinate.ParseFromPath(filepath.ToSlash(rel))
		if err != nil {
			stats.Errors++
			s.logger.Debug("skipping non-artifact path", "path", anchor, "err", err)
			continue
		}

		ctx := &contributor.ArtifactContext{
			PomFile:      g.pomFile,
			ArtifactFile: g.artifactFile,
			MetadataFile: g.metadataFile,
			Coordinate:   coord,
		}
		ctx.Info.Coordinate = coord

		s.registry.Populate(ctx)
		info := ctx.Info
		gav := record.CalculateGav(info)
		uinfo := coordinate.UINFO(gav)
		rec := s.registry.BuildRecord(info, uinfo)

		stats.ArtifactsSeen++
		if len(info.Errors) > 0 {
			stats.Errors += len(info.Errors)
		}
		listener.ArtifactDiscovered(info, info.Errors)

		if err := target.AddArtifact(gav, rec); err != nil {
			return stats, fmt.Errorf("scanner: add artifact %s: %w", gav, err)
		}
	}

	listener.ScanFinished(stats)
	s.logger.Info("scan finished", "filesVisited", stats.FilesVisited, "artifacts", stats.ArtifactsSeen, "errors", stats.Errors)
	return stats, nil
}

func matchesFilters(rel string, opts Options) bool {
	if len(opts.Excludes) > 0 {
		for _, pattern := range opts.Excludes {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return false
			}
		}
	}
	if len(opts.Includes) == 0 {
		return true
	}
	for _, pattern := range opts.Includes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
