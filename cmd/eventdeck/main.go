package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/eventdeck/eventdeck/internal/prefs"
	"github.com/eventdeck/eventdeck/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var configPath string
	var host string
	var replay int
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/eventdeck/config.yml)")
	flag.StringVar(&host, "host", "", "override server host")
	flag.IntVar(&replay, "replay", -1, "override historical events requested on connect")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("eventdeck - live event dashboard\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		fmt.Printf("  Built:   %s\n", buildTime)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if host != "" {
		cfg.Host = host
	}
	if replay >= 0 {
		cfg.Replay = replay
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	log, cleanup := configureRuntimeLogger(cfg.LogLevel)
	defer cleanup()

	store, err := prefs.Open(cfg.PrefsDir, prefs.Namespace)
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}

	dashboard := tui.NewDashboard(tui.Config{
		Host:   cfg.Host,
		Replay: cfg.Replay,
		Prefs:  store,
		Log:    log,
	})

	p := tea.NewProgram(dashboard, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// configureRuntimeLogger sends diagnostics to a state file so the TUI owns
// the terminal.
func configureRuntimeLogger(level string) (zerolog.Logger, func()) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return zerolog.Nop(), func() {}
	}
	logDir := filepath.Join(home, ".local", "state", "eventdeck")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return zerolog.Nop(), func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, "eventdeck.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), func() {}
	}

	log := zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	return log, func() { _ = f.Close() }
}
