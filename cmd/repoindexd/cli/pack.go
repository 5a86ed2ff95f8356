package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"repoindex/internal/config"
	"repoindex/internal/contributor"
	"repoindex/internal/contributor/archivemeta"
	"repoindex/internal/contributor/minimal"
	"repoindex/internal/contributor/pomfields"
	"repoindex/internal/indexctx"
	"repoindex/internal/packer"
	"repoindex/internal/scanner"
)

// buildRegistry returns the contributor set every pack run scans with, in
// the order populate/updateDocument run. The archive contributor is wrapped
// with its bbolt-backed classname cache, keyed in indexDir alongside the
// indexing context it serves.
func buildRegistry(indexDir string) (*contributor.Registry, *archivemeta.CachedContributor, error) {
	archiveMeta, err := archivemeta.Open(filepath.Join(indexDir, "archivemeta.bolt"))
	if err != nil {
		return nil, nil, err
	}
	return contributor.NewRegistry(minimal.New(), pomfields.New(), archiveMeta), archiveMeta, nil
}

// NewPackCommand returns the "pack" command: scan the repository, commit,
// and publish one cycle (spec §4.8).
func NewPackCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Scan a repository and publish its index",
		RunE: func(cmd *cobra.Command, args []string) error {
			repositoryDir, _ := cmd.Flags().GetString("repository")
			indexDir, _ := cmd.Flags().GetString("index")
			targetDir, _ := cmd.Flags().GetString("target")
			format, _ := cmd.Flags().GetString("format")
			chunks, _ := cmd.Flags().GetBool("chunks")
			checksums, _ := cmd.Flags().GetBool("checksums")
			excludes, _ := cmd.Flags().GetStringArray("exclude")
			retainedChunks, _ := cmd.Flags().GetInt("retained-chunks")
			seedFromTarget, _ := cmd.Flags().GetBool("seed-from-target")

			if repositoryDir == "" || indexDir == "" || targetDir == "" {
				return fmt.Errorf("%w: --repository, --index and --target are required", packer.ErrInvalidArgument)
			}

			cfg := config.DefaultConfig()
			cfg.RepositoryDir = repositoryDir
			cfg.IndexDir = indexDir
			cfg.TargetDir = targetDir
			cfg.Format = config.Format(format)
			cfg.Chunks = chunks
			cfg.Checksums = checksums
			cfg.Excludes = excludes
			cfg.SeedFromTarget = seedFromTarget
			if retainedChunks > 0 {
				cfg.RetainedChunks = retainedChunks
			}

			result, err := runPack(cfg, logger)
			if err != nil {
				return err
			}

			if result.ForcedRegeneration {
				fmt.Fprintln(cmd.ErrOrStderr(), "repoindexd: descriptor or incremental chain was reset; published a full regeneration")
				os.Exit(ExitIndexCorruption)
			}
			return nil
		},
	}

	cmd.Flags().String("repository", "", "artifact repository directory to scan (required)")
	cmd.Flags().String("index", "", "indexing context directory (required)")
	cmd.Flags().String("target", "", "publication target directory (required)")
	cmd.Flags().String("format", string(config.FormatV1), "publication format: v1, legacy, or both")
	cmd.Flags().Bool("chunks", false, "emit incremental chunks alongside the full dump")
	cmd.Flags().Bool("checksums", true, "write sibling .sha1/.md5 checksum files")
	cmd.Flags().StringArray("exclude", nil, "doublestar glob excluded from the scan (repeatable)")
	cmd.Flags().Int("retained-chunks", 0, "historical chunk markers to retain (0 = default 30)")
	cmd.Flags().Bool("seed-from-target", false, "seed the descriptor from the target directory's published copy instead of the context sidecar")

	return cmd
}

func runPack(cfg *config.PackerConfig, logger *slog.Logger) (packer.Result, error) {
	registry, archiveMeta, err := buildRegistry(cfg.IndexDir)
	if err != nil {
		return packer.Result{}, fmt.Errorf("%w: open archive metadata cache: %v", packer.ErrIOFailure, err)
	}
	defer archiveMeta.Close()

	ctx, err := indexctx.Open(cfg.IndexDir, registry, logger)
	if err != nil {
		return packer.Result{}, fmt.Errorf("%w: open indexing context: %v", packer.ErrIOFailure, err)
	}
	defer ctx.Close()

	s := scanner.New(registry, logger)
	if _, err := s.Scan(cfg.RepositoryDir, ctx, nil, scanner.Options{Excludes: cfg.Excludes}); err != nil {
		return packer.Result{}, fmt.Errorf("%w: scan repository: %v", packer.ErrIOFailure, err)
	}
	if err := ctx.Commit(); err != nil {
		return packer.Result{}, fmt.Errorf("%w: commit: %v", packer.ErrIOFailure, err)
	}

	return packer.Pack(ctx, cfg, logger)
}
