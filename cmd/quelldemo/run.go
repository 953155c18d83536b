package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/quelldemo/pkg/demo"
	"github.com/pario-ai/quelldemo/pkg/executor"
	"github.com/pario-ai/quelldemo/pkg/models"
	"github.com/pario-ai/quelldemo/pkg/render"
	"github.com/pario-ai/quelldemo/pkg/router"
)

type runOptions struct {
	sample      string
	query       string
	label       string
	repeat      int
	concurrency int
	jq          string
	showData    bool
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		mode       string
		opts       runOptions
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a sample or ad-hoc query and print timings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			if mode != "" {
				if _, err := models.ParseMode(mode); err != nil {
					return err
				}
				cfg.Mode = mode
			}

			ctrl, err := demo.Build(cfg, nil)
			if err != nil {
				return err
			}
			return runQueries(cmd.Context(), ctrl, opts, cmd.OutOrStdout())
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "caching mode: client or server (overrides config)")
	cmd.Flags().StringVarP(&opts.sample, "sample", "s", "", "sample label to submit (default: "+demo.DefaultSampleLabel+")")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "ad-hoc query text")
	cmd.Flags().StringVar(&opts.label, "label", "custom", "type label recorded for --query")
	cmd.Flags().IntVarP(&opts.repeat, "repeat", "n", 2, "number of submissions")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 1, "submissions in flight at once")
	cmd.Flags().StringVar(&opts.jq, "jq", "", "jq expression applied to the printed payload")
	cmd.Flags().BoolVar(&opts.showData, "data", false, "print the payload of the last successful submission")
	return cmd
}

// runQueries submits the chosen query opts.repeat times with at most
// opts.concurrency in flight, then prints the metrics snapshot.
// Failed submissions are recorded and reported but do not stop the run.
func runQueries(ctx context.Context, ctrl *demo.Controller, opts runOptions, out io.Writer) error {
	if opts.sample != "" && opts.query != "" {
		return errors.New("--sample and --query are mutually exclusive")
	}
	if opts.repeat < 1 {
		return errors.New("--repeat must be at least 1")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q, err := resolveQuery(ctrl, opts)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		last *models.Outcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))
	for i := range opts.repeat {
		g.Go(func() error {
			o, err := ctrl.Submit(gctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				mode := ctrl.Mode()
				var se *router.SubmitError
				if errors.As(err, &se) {
					mode = se.Mode
				}
				fmt.Fprintf(out, "#%-3d %-6s %-10s error: %s\n", i+1, mode, q.TypeLabel, executor.UserMessage(err))
				return nil
			}
			fmt.Fprintf(out, "#%-3d %-6s %-10s %8.2fms  %s\n", i+1, o.Mode, o.TypeLabel, o.ElapsedMs(), hitMiss(o.Result.WasHit))
			last = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.showData && last != nil {
		text, err := render.Payload(last.Result.Data, opts.jq)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", text)
	}

	fmt.Fprintln(out)
	return render.Snapshot(out, ctrl.Snapshot())
}

func resolveQuery(ctrl *demo.Controller, opts runOptions) (models.QueryRecord, error) {
	if opts.query != "" {
		return models.QueryRecord{Text: opts.query, TypeLabel: opts.label}, nil
	}
	label := opts.sample
	if label == "" {
		label = ctrl.Selected()
	}
	return ctrl.Samples().Get(label)
}

func hitMiss(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
