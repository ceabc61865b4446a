package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"codeberg.org/algopatterns/collab/internal/config"
	"codeberg.org/algopatterns/collab/internal/tui"
)

func main() {
	flags := config.ParseWatchFlags()

	if flags.DocumentID == "" {
		fmt.Fprintln(os.Stderr, "usage: roomwatch -doc <documentId> [-user id] [-name display] [-token jwt] [-endpoint url]")
		os.Exit(2)
	}

	app := tui.NewApp(flags)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("error running roomwatch: %v\n", err)
		os.Exit(1)
	}
}
