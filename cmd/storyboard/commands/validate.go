package commands

import (
	"fmt"

	"github.com/phanxgames/storyboard"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var validateCmd = &cobra.Command{
	Use:   "validate <board.yaml>...",
	Short: "Check boards for errors",
	Long: `Parse and validate one or more boards. Every problem of every board is
reported, not only the first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed error
		for _, path := range args {
			b, err := storyboard.LoadBoard(path)
			if err != nil {
				for _, e := range multierr.Errors(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", styles.Fail.Render("✗"), e)
				}
				failed = multierr.Append(failed, fmt.Errorf("%s: invalid", path))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d keyframes, length %g)\n",
				styles.OK.Render("✓"), path, len(b.Keyframes), b.Length)
		}
		return failed
	},
}
