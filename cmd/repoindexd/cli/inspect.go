package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"repoindex/internal/descriptor"
	"repoindex/internal/packer"
)

// NewInspectCommand returns the "inspect" command: print a published
// descriptor's identity and incremental publication state in human-readable
// form.
func NewInspectCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a published index descriptor's state",
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir, _ := cmd.Flags().GetString("target")
			if targetDir == "" {
				return fmt.Errorf("%w: --target is required", packer.ErrInvalidArgument)
			}

			path := filepath.Join(targetDir, "nexus-maven-repository-index.properties")
			desc, err := descriptor.Load(path)
			if err != nil {
				return fmt.Errorf("%w: load descriptor %s: %v", packer.ErrIOFailure, path, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "index id:        %s\n", desc.IndexID)
			fmt.Fprintf(out, "chain id:        %s\n", desc.ChainID)
			fmt.Fprintf(out, "chunk counter:   %d\n", desc.ChunkCounter)
			fmt.Fprintf(out, "timestamp:       %s\n", desc.Timestamp)
			fmt.Fprintf(out, "legacy ts:       %s\n", desc.LegacyTimestamp)

			if len(desc.Chunks) > 0 {
				nums := make([]int, 0, len(desc.Chunks))
				for n := range desc.Chunks {
					nums = append(nums, n)
				}
				sort.Ints(nums)
				fmt.Fprintln(out, "retained chunks:")
				for _, n := range nums {
					fmt.Fprintf(out, "  %d -> chain %s\n", n, desc.Chunks[n])
				}
			}

			if len(desc.Extra) > 0 {
				keys := make([]string, 0, len(desc.Extra))
				for k := range desc.Extra {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintln(out, "extra keys:")
				for _, k := range keys {
					fmt.Fprintf(out, "  %s = %s\n", k, desc.Extra[k])
				}
			}

			return nil
		},
	}

	cmd.Flags().String("target", "", "publication target directory to inspect (required)")
	return cmd
}
