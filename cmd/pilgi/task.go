package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/pilgi/app"
	"github.com/kbukum/pilgi/bootstrap"
	"github.com/kbukum/pilgi/transcription"
)

var (
	language string
	pacing   time.Duration
	outDir   string
)

func init() {
	transcribeCmd.Flags().StringVarP(&language, "language", "l", "", "language code; empty detects it")
	transcribeCmd.Flags().DurationVar(&pacing, "pacing", 0, "delay between rendered tokens (overrides config)")
	transcribeCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the transcript file")
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe one file and write the transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, task, err := newTask()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("pacing") {
			a.Cfg.Transcription.Pacing = pacing
		}

		out := cmd.OutOrStdout()
		r := &renderer{w: out}
		return a.RunTask(cmd.Context(), func(ctx context.Context) error {
			path, err := task.Transcribe(ctx, args[0], language, outDir, r.render)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(out, "\nSaved %s\n", path)
			}
			return nil
		})
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Load the model once, downloading weights if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		a, task, err := newTask(app.WithLoadObserver(func(ev transcription.LoadEvent) {
			if ev.Message != "" {
				fmt.Fprintf(out, "[%s] %s\n", ev.Phase, ev.Message)
			}
		}))
		if err != nil {
			return err
		}
		return a.RunTask(cmd.Context(), func(ctx context.Context) error {
			report, err := task.Prepare(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Model %s is %s\n", report.Model, report.Status)
			return nil
		})
	},
}

func newTask(opts ...app.Option) (*bootstrap.App[*app.Config], *app.Task, error) {
	cfg, err := app.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	// The task loads the model itself.
	cfg.Model.Policy = transcription.PolicyLazy

	a, err := bootstrap.NewApp(cfg, bootstrap.WithoutSummary())
	if err != nil {
		return nil, nil, err
	}
	task, err := app.NewTask(a, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a, task, nil
}

// renderer prints session events as a terminal transcript: progress as
// status lines, tokens as they grow.
type renderer struct {
	w       io.Writer
	printed string
}

func (r *renderer) render(ev transcription.ProgressEvent) {
	switch ev.Kind {
	case transcription.KindProgress:
		fmt.Fprintf(r.w, "[%3.0f%%] %s\n", ev.Fraction*100, ev.Text)
	case transcription.KindToken:
		fmt.Fprint(r.w, strings.TrimPrefix(ev.Text, r.printed))
		r.printed = ev.Text
	case transcription.KindSuccess:
		if i := strings.Index(ev.Text, "\n---\n"); i >= 0 {
			fmt.Fprintf(r.w, "\n%s\n", strings.TrimSpace(ev.Text[i+len("\n---\n"):]))
		}
	default:
		fmt.Fprintln(r.w, ev.Text)
	}
}
