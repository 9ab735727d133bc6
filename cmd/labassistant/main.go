// cmd/labassistant/main.go
//
// Entry point for the labassistant CLI. Running it without a subcommand
// opens the TUI; the subcommands cover headless runs and the procedure and
// chemical libraries.

package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/lab-assistant/internal/config"
	"github.com/kingrea/lab-assistant/internal/inventory"
	"github.com/kingrea/lab-assistant/internal/logbook"
	"github.com/kingrea/lab-assistant/internal/logging"
	"github.com/kingrea/lab-assistant/internal/procedure"
	"github.com/kingrea/lab-assistant/internal/store/sqlite"
	"github.com/kingrea/lab-assistant/internal/tui"
)

func main() {
	e := &env{}
	err := newRootCmd(e).Execute()
	if closeErr := e.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is the state shared by every subcommand once config is loaded.
type env struct {
	home    string
	cfg     *config.Config
	log     *logging.Logger
	journal *logbook.Logbook
	store   *sqlite.Store
	library *procedure.Library
	ledger  *inventory.Ledger
}

func (e *env) open() error {
	home, err := config.ResolveHome(e.home)
	if err != nil {
		return err
	}
	if err := config.InitDir(home); err != nil {
		return err
	}
	cfg, err := config.Load(home)
	if err != nil {
		return err
	}
	e.cfg = cfg
	if e.log, err = logging.Open(cfg.LogPath(), cfg.File.LogLevel); err != nil {
		return err
	}
	if e.journal, err = logbook.New(cfg.JournalPath()); err != nil {
		return err
	}
	if e.store, err = sqlite.Open(cfg.DatabasePath()); err != nil {
		return err
	}
	if e.library, err = procedure.NewLibrary(e.store, procedure.WithDir(cfg.ProceduresDir())); err != nil {
		return err
	}
	if e.ledger, err = inventory.NewLedger(e.store, inventory.WithLogger(e.log.Logger)); err != nil {
		return err
	}
	e.log.Debug("environment ready", "home", cfg.Root, "database", cfg.DatabasePath())
	return nil
}

// close releases the store and log file. It is safe to call when open
// failed part way or never ran.
func (e *env) close() error {
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Close())
		e.store = nil
	}
	if e.log != nil {
		errs = append(errs, e.log.Close())
		e.log = nil
	}
	return errors.Join(errs...)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "labassistant",
		Short:         "Darkroom timers, procedures and chemical stock",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.open()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := tui.NewApp(e.cfg, e.library, e.ledger,
				tui.WithLogbook(e.journal),
				tui.WithLogger(e.log.Logger),
			)
			if err != nil {
				return err
			}
			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run TUI: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&e.home, "home", "", "Directory containing .labassistant (default $"+config.HomeEnv+" or your home directory)")

	root.AddCommand(runCmd(e))
	root.AddCommand(procedureCmd(e))
	root.AddCommand(chemCmd(e))
	root.AddCommand(tagCmd(e))
	root.AddCommand(ratioCmd())
	return root
}
