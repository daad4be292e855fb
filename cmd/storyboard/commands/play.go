package commands

import (
	"github.com/phanxgames/storyboard"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <board.yaml>",
	Short: "Open a board in a window",
	Long: `Open a board in a window. Scroll with the mouse wheel or drag with the
mouse or a finger. With --script the scripted interaction runs on top of
live input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		b, err := storyboard.LoadBoard(args[0])
		if err != nil {
			return err
		}
		st, err := b.Stage(storyboard.StageConfig{Logger: logger})
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("script"); path != "" {
			s, err := storyboard.LoadScript(path)
			if err != nil {
				st.Close()
				return err
			}
			st.SetScript(storyboard.NewScriptRunner(s))
		}

		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			title = b.Name
		}
		showFPS, _ := cmd.Flags().GetBool("fps")
		resizable, _ := cmd.Flags().GetBool("resizable")
		return storyboard.Run(st, storyboard.RunConfig{
			Title:     title,
			ShowFPS:   showFPS,
			Resizable: resizable,
		})
	},
}

func init() {
	playCmd.Flags().String("script", "", "Script file to run while playing")
	playCmd.Flags().String("title", "", "Window title (default is the board name)")
	playCmd.Flags().Bool("fps", false, "Show the FPS overlay")
	playCmd.Flags().Bool("resizable", false, "Allow resizing the window")
}
