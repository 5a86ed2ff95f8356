// Package config holds the struct-based configuration for a packer run.
package config

// Format selects which publication formats a pack invocation produces.
type Format string

const (
	FormatV1     Format = "v1"
	FormatLegacy Format = "legacy"
	FormatBoth   Format = "both"
)

// PackerConfig configures one packer publication cycle (spec §4.8, §6).
type PackerConfig struct {
	// RepositoryDir is the artifact repository tree the scanner walks.
	RepositoryDir string
	// IndexDir is the indexing context's durable directory.
	IndexDir string
	// TargetDir is where published files are written.
	TargetDir string

	Format Format

	// Chunks requests incremental chunk emission alongside the full dump.
	Chunks bool
	// Checksums requests sibling .sha1/.md5 files for every published file.
	Checksums bool

	// Excludes are doublestar glob patterns (relative to RepositoryDir)
	// skipped during the scan.
	Excludes []string

	// RetainedChunks is N, the number of historical chunk markers kept in
	// the descriptor (spec §9 open question). Defaults to 30.
	RetainedChunks int

	// SeedFromTarget, when true, seeds the next cycle's descriptor from the
	// target directory's published copy instead of the context-local
	// sidecar (spec §9 second open question; default false).
	SeedFromTarget bool
}

// DefaultConfig returns a PackerConfig with the spec's documented defaults
// applied; callers still must set RepositoryDir/IndexDir/TargetDir.
func DefaultConfig() *PackerConfig {
	return &PackerConfig{
		Format:         FormatV1,
		Checksums:      true,
		RetainedChunks: 30,
	}
}
