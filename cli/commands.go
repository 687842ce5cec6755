package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"writing_workspace/generator"
	"writing_workspace/server"
	"writing_workspace/writing"
)

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(e.app)
			if err != nil {
				return err
			}
			listen := e.app.Config.ServerAddr
			if addr != "" {
				listen = addr
			}
			e.app.Logger.Printf("Starting web server on %s", listen)
			return http.ListenAndServe(listen, srv.Routes())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server_addr)")
	return cmd
}

func newWriteCmd(e *env) *cobra.Command {
	var (
		agent      bool
		scenarioID string
		yes        bool
	)
	cmd := &cobra.Command{
		Use:   "write <request>",
		Short: "Start a writing task",
		Long: `Start a writing task from a request.

In general mode the proposed outline is printed and the task waits for
confirmation; pass --yes to accept it and write the document at once.
Agent mode (--agent, or a request that mentions @) writes directly using
the saved memory and parameter values of the scenario.

Examples:
  writing write "quarterly report for the platform team" --yes
  writing write "@report weekly summary" --scenario general`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			mode := writing.ModeGeneral
			if agent || writing.HasMention(input) {
				mode = writing.ModeAgent
			}
			ctx := cmd.Context()
			w, task, err := e.app.NewTask(ctx, input, mode, scenarioID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "task %s\n", task.ID)

			if mode == writing.ModeGeneral {
				fmt.Fprint(out(cmd), renderOutline(w.OutlineTree()))
				if !yes {
					fmt.Fprintln(out(cmd), mutedStyle.Render("outline saved; rerun with --yes to write the document"))
					return nil
				}
				_, err = w.ConfirmOutline(ctx)
			} else {
				_, err = w.StartGenerate(ctx)
			}
			if err != nil {
				return err
			}
			w.Wait()
			snap := w.Snapshot()
			fmt.Fprintf(out(cmd), "%s %s\n\n%s\n", renderState(snap.State), titleStyle.Render(snap.DocumentName), snap.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&agent, "agent", false, "write directly in agent mode")
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "scenario id (default general)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept the outline and write the document")
	return cmd
}

func newTasksCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect the task history",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tasks, most recent first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprint(out(cmd), renderTaskList(e.app.Tasks.List()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <task-id>",
			Short: "Show a task with its conversation and document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				task, ok := e.app.Tasks.Get(args[0])
				if !ok {
					return fmt.Errorf("task %s not found", args[0])
				}
				fmt.Fprint(out(cmd), renderTask(task))
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <task-id> [task-id...]",
			Short: "Delete tasks",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, id := range args {
					e.app.DeleteTask(id)
					fmt.Fprintf(out(cmd), "deleted %s\n", id)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "confirm <task-id>",
			Short: "Accept the outline of a task and write the document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				w, ok := e.app.Workspace(args[0])
				if !ok {
					return fmt.Errorf("task %s not found", args[0])
				}
				applied, err := w.ConfirmOutline(cmd.Context())
				if err != nil {
					return err
				}
				if !applied {
					return fmt.Errorf("task %s has no outline waiting for confirmation", args[0])
				}
				w.Wait()
				snap := w.Snapshot()
				fmt.Fprintf(out(cmd), "%s %s\n\n%s\n", renderState(snap.State), titleStyle.Render(snap.DocumentName), snap.Content)
				return nil
			},
		},
	)
	return cmd
}

func newRewriteCmd(e *env) *cobra.Command {
	var (
		typ    string
		prompt string
	)
	cmd := &cobra.Command{
		Use:   "rewrite <text>",
		Short: "Rewrite a fragment (continue, polish, expand or custom)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.app.Rewriter == nil {
				if e.app.LLMErr != nil {
					return e.app.LLMErr
				}
				return errors.New("rewrite service is not configured")
			}
			t := generator.ParseRewriteType(typ)
			result, err := e.app.Rewriter.Rewrite(cmd.Context(), strings.Join(args, " "), t, prompt)
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(generator.RewritePolish), "continue, polish, expand or custom")
	cmd.Flags().StringVar(&prompt, "prompt", "", "instruction for --type custom")
	return cmd
}

func newExportCmd(e *env) *cobra.Command {
	var inline bool
	cmd := &cobra.Command{
		Use:   "export <task-id>",
		Short: "Export the document of a task as Markdown and HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, ok := e.app.Workspace(args[0])
			if !ok {
				return fmt.Errorf("task %s not found", args[0])
			}
			res, err := e.app.Export(w, inline)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s\n%s\n", res.MarkdownPath, res.HTMLPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "inline heading and list styles for pasting")
	return cmd
}

func newScenariosCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range e.app.Scenarios.List() {
				fmt.Fprintf(out(cmd), "%s  %s  %s\n", titleStyle.Render(s.ID), s.Name, mutedStyle.Render(s.Description))
			}
			return nil
		},
	}
}
