package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/phanxgames/storyboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultMaxFrames = 36000

var replayCmd = &cobra.Command{
	Use:   "replay <board.yaml> <script.yaml>",
	Short: "Replay a script against a board without a window",
	Long: `Replay a scripted interaction against a board at a fixed frame rate and
print every keyframe transition and mark. Runs without a window, so it is
suitable for CI.`,
	Args: cobra.ExactArgs(2),
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
		s, err := storyboard.LoadScript(args[1])
		if err != nil {
			return err
		}
		fps, _ := cmd.Flags().GetInt("fps")
		maxFrames, _ := cmd.Flags().GetInt("max-frames")
		format, _ := cmd.Flags().GetString("output")

		rep, err := runReplay(b, s, fps, maxFrames, logger)
		if err != nil {
			return err
		}

		switch format {
		case "yaml":
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			if err := enc.Encode(rep); err != nil {
				return err
			}
		case "", "table":
			renderReport(cmd.OutOrStdout(), rep)
		default:
			return fmt.Errorf("unknown output format %q", format)
		}

		if !rep.Finished {
			return fmt.Errorf("script did not finish within %d frames", rep.Frames)
		}
		if len(rep.TimedOut) > 0 {
			return fmt.Errorf("settle timed out: %s", strings.Join(rep.TimedOut, ", "))
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().Int("fps", 0, "Frame rate (default is the script's, or 60)")
	replayCmd.Flags().Int("max-frames", defaultMaxFrames, "Give up after this many frames")
	replayCmd.Flags().StringP("output", "o", "table", "Output format: table or yaml")
}

// transitionRow is one recorded transition.
type transitionRow struct {
	Type      string  `yaml:"type"`
	Keyframe  string  `yaml:"keyframe"`
	Direction string  `yaml:"direction"`
	Offset    float64 `yaml:"offset"`
	Episode   uint64  `yaml:"episode"`
	Err       string  `yaml:"error,omitempty"`
}

type markRow struct {
	Label  string   `yaml:"label"`
	Frame  uint64   `yaml:"frame"`
	Offset float64  `yaml:"offset"`
	Active []string `yaml:"active"`
}

// replayReport is the outcome of a replay.
type replayReport struct {
	Board       string          `yaml:"board"`
	Script      string          `yaml:"script,omitempty"`
	Frames      int             `yaml:"frames"`
	Finished    bool            `yaml:"finished"`
	TimedOut    []string        `yaml:"timedOut,omitempty"`
	Marks       []markRow       `yaml:"marks"`
	Transitions []transitionRow `yaml:"transitions"`
}

// runReplay builds a headless stage for b and replays s against it.
func runReplay(b *storyboard.Board, s *storyboard.Script, fps, maxFrames int, logger *zap.Logger) (*replayReport, error) {
	if fps <= 0 {
		fps = s.FPS
	}
	if maxFrames <= 0 {
		maxFrames = defaultMaxFrames
	}

	var (
		mu   sync.Mutex
		rows []transitionRow
	)
	record := func(ev storyboard.TransitionEvent) {
		row := transitionRow{
			Type:      ev.Type.String(),
			Keyframe:  ev.Name,
			Direction: ev.Direction.String(),
			Offset:    ev.Offset,
			Episode:   ev.Episode,
		}
		if ev.Err != nil {
			row.Err = ev.Err.Error()
		}
		mu.Lock()
		rows = append(rows, row)
		mu.Unlock()
	}

	st, err := b.Stage(storyboard.StageConfig{
		Input:        storyboard.InputConfig{DisableDevices: true},
		OnTransition: record,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	r := storyboard.NewScriptRunner(s)
	frames := storyboard.Replay(st, r, fps, maxFrames)
	st.Close()

	rep := &replayReport{
		Board:    b.Name,
		Script:   s.Name,
		Frames:   frames,
		Finished: r.Done(),
		TimedOut: r.TimedOut(),
	}
	for _, m := range r.Marks() {
		rep.Marks = append(rep.Marks, markRow{Label: m.Label, Frame: m.Frame, Offset: m.Offset, Active: m.Active})
	}
	mu.Lock()
	rep.Transitions = rows
	mu.Unlock()
	return rep, nil
}

// renderReport prints rep as two aligned tables.
func renderReport(w io.Writer, rep *replayReport) {
	name := rep.Board
	if name == "" {
		name = "board"
	}
	status := styles.OK.Render("finished")
	if !rep.Finished {
		status = styles.Fail.Render("unfinished")
	}
	fmt.Fprintf(w, "%s %s\n\n", styles.Title.Render(name), styles.Dim.Render(fmt.Sprintf("[%d frames, %s]", rep.Frames, status)))

	if len(rep.Marks) > 0 {
		fmt.Fprintln(w, styles.Title.Render("Marks"))
		table := [][]string{{"LABEL", "FRAME", "OFFSET", "ACTIVE"}}
		for _, m := range rep.Marks {
			table = append(table, []string{
				m.Label,
				fmt.Sprint(m.Frame),
				fmt.Sprintf("%.1f", m.Offset),
				strings.Join(m.Active, ","),
			})
		}
		fmt.Fprintln(w, renderTable(table))
	}

	fmt.Fprintln(w, styles.Title.Render("Transitions"))
	if len(rep.Transitions) == 0 {
		fmt.Fprintln(w, styles.Dim.Render("(none)"))
	} else {
		table := [][]string{{"KEYFRAME", "TYPE", "DIRECTION", "OFFSET", "EPISODE", "ERROR"}}
		for _, t := range rep.Transitions {
			table = append(table, []string{
				t.Keyframe,
				t.Type,
				t.Direction,
				fmt.Sprintf("%.1f", t.Offset),
				fmt.Sprint(t.Episode),
				t.Err,
			})
		}
		fmt.Fprintln(w, renderTable(table))
	}

	for _, label := range rep.TimedOut {
		fmt.Fprintf(w, "%s settle %q timed out\n", styles.Fail.Render("✗"), label)
	}
}

// renderTable lays rows out in columns. The first row is the header.
func renderTable(rows [][]string) string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		style := styles.Cell
		if r == 0 {
			style = styles.Header
		}
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = style.Width(widths[i] + 2).Render(cell)
		}
		lines = append(lines, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	}
	return strings.Join(lines, "\n")
}
