// storyboard loads, validates, plays and replays scroll-driven boards.
//
// Usage:
//
//	storyboard validate board.yaml              # Check a board for errors
//	storyboard play board.yaml                  # Open the board in a window
//	storyboard play board.yaml --script s.yaml  # Play with a scripted interaction
//	storyboard replay board.yaml s.yaml         # Replay headlessly and print transitions
//	storyboard replay board.yaml s.yaml -o yaml # Same, as YAML
package main

import (
	"os"

	"github.com/phanxgames/storyboard/cmd/storyboard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
