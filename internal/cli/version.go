package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucky845/gtipsync/internal/platform"
)

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gtipsync version and the pinned probe release",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(a.stdout, "gtipsync %s (probe %s)\n", Version, platform.PinnedVersion)
			return err
		},
	}
}
