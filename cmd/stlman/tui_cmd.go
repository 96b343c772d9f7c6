package main

import (
	"context"
	"flag"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jolivier22/stlmanager/internal/logging"
	"github.com/jolivier22/stlmanager/internal/tui"
)

func handleTUI(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := loadConfig(cf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.General.DataRoot, 0o755); err != nil {
		return err
	}
	// Terminal output belongs to bubbletea; route logs to a file next to
	// the preference store.
	logFile, err := os.OpenFile(c.PrefsPath()+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()
	log := logging.NewWriter(cf.logLevel, true, logFile)

	relay := &tui.Relay{}
	m, err := tui.New(c, log, relay)
	if err != nil {
		return err
	}
	defer m.Session().Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	relay.Bind(p.Send)
	_, err = p.Run()
	return err
}
