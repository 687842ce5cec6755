// Package cli implements the writing command line.
package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"writing_workspace/app"
	"writing_workspace/config"
)

// Options are the collaborators of the command tree. Zero values use the
// OS filesystem, the default logger and configuration from --config.
type Options struct {
	FS     afero.Fs
	Logger *log.Logger
	// Config skips loading configuration when set.
	Config *config.Config
}

type env struct {
	opts       Options
	configPath string
	verbose    bool
	app        *app.App
}

// NewRootCmd builds the command tree.
func NewRootCmd(opts Options) *cobra.Command {
	e := &env{opts: opts}
	root := &cobra.Command{
		Use:   "writing",
		Short: "AI-assisted writing workspace",
		Long: `writing drafts documents with a language model.

A general task proposes an outline first and writes the document once the
outline is confirmed. An agent task writes directly from its memory and
parameter settings. Tasks are kept in a bounded local history.`,
		SilenceUsage:       true,
		PersistentPreRunE:  e.setup,
		PersistentPostRunE: e.teardown,
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "path to config file (default ./writing.yaml)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "enable info logs")

	root.AddCommand(
		newServeCmd(e),
		newWriteCmd(e),
		newTasksCmd(e),
		newRewriteCmd(e),
		newExportCmd(e),
		newScenariosCmd(e),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return NewRootCmd(Options{}).Execute()
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	var cfg config.Config
	if e.opts.Config != nil {
		cfg = *e.opts.Config
	} else {
		loaded, err := config.Load(e.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if e.verbose {
		cfg.Verbose = true
	}
	a, err := app.New(cfg, e.opts.FS, e.opts.Logger)
	if err != nil {
		return fmt.Errorf("starting workspace: %w", err)
	}
	e.app = a
	return nil
}

func (e *env) teardown(*cobra.Command, []string) error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	e.app = nil
	return err
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
