package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"repoindex/internal/digest"
	"repoindex/internal/logging"
	"repoindex/internal/packer"
)

func indexFileName(suffix string) string {
	return "nexus-maven-repository-index" + suffix
}

// NewVerifyCommand returns the "verify" command: recompute the SHA-1/MD5 of
// each published file under --target that has a sibling .sha1 or .md5 file
// and report any mismatch. The .properties descriptor and files with no
// sibling checksum are skipped, and a missing or unreadable .sha1/.md5 next
// to a present one is not reported.
func NewVerifyCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute checksums of a published index and compare against the sibling .sha1/.md5 files",
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir, _ := cmd.Flags().GetString("target")
			if targetDir == "" {
				return fmt.Errorf("%w: --target is required", packer.ErrInvalidArgument)
			}
			log := logging.Default(logger).With("component", "verify")

			entries, err := os.ReadDir(targetDir)
			if err != nil {
				return fmt.Errorf("%w: read target dir: %v", packer.ErrIOFailure, err)
			}

			var checked int
			var mismatches []string
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				name := entry.Name()
				if hasChecksumSuffix(name) || name == indexFileName(".properties") {
					continue
				}
				path := filepath.Join(targetDir, name)
				sha1Path := path + ".sha1"
				md5Path := path + ".md5"
				if !fileExists(sha1Path) && !fileExists(md5Path) {
					continue
				}

				checked++
				gotSHA1, gotMD5, err := digest.SumFile(path)
				if err != nil {
					return fmt.Errorf("%w: sum %s: %v", packer.ErrIOFailure, path, err)
				}
				if ok, want := compareSibling(sha1Path, gotSHA1); !ok {
					mismatches = append(mismatches, fmt.Sprintf("%s: sha1 mismatch (want %s, got %s)", name, want, gotSHA1))
				}
				if ok, want := compareSibling(md5Path, gotMD5); !ok {
					mismatches = append(mismatches, fmt.Sprintf("%s: md5 mismatch (want %s, got %s)", name, want, gotMD5))
				}
			}

			if len(mismatches) > 0 {
				for _, m := range mismatches {
					fmt.Fprintln(cmd.ErrOrStderr(), m)
				}
				return fmt.Errorf("%w: %d checksum mismatch(es) under %s", packer.ErrIndexCorruption, len(mismatches), targetDir)
			}
			log.Info("verify passed", "filesChecked", checked, "target", targetDir)
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d file(s) verified\n", checked)
			return nil
		},
	}

	cmd.Flags().String("target", "", "publication target directory to verify (required)")
	return cmd
}

func hasChecksumSuffix(name string) bool {
	return filepath.Ext(name) == ".sha1" || filepath.Ext(name) == ".md5"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func compareSibling(path, got string) (ok bool, want string) {
	content, err := os.ReadFile(path) //nolint:gosec // path is derived from a directory entry the caller owns
	if err != nil {
		return true, ""
	}
	want = string(content)
	return want == got, want
}
