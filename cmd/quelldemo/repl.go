package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/quelldemo/pkg/demo"
	"github.com/pario-ai/quelldemo/pkg/executor"
	"github.com/pario-ai/quelldemo/pkg/models"
	"github.com/pario-ai/quelldemo/pkg/render"
)

const replHelp = `Commands:
  submit [label]                submit the selected sample, or the one named
  query <text>                  submit an ad-hoc query
  mode client|server            switch caching mode (clears both caches)
  toggle                        flip caching mode (clears both caches)
  limits [depth cost rate]      show or set cost limits
  clear                         clear the active cache layer(s)
  reset                         clear the active cache layer(s) and timings
  stats                         show metrics and the response time chart
  samples                       list sample queries
  select <label>                choose the sample used by submit
  jq [expr]                     show or set the payload filter ("" to clear)
  help                          show this help
  quit                          leave
`

var errQuit = errors.New("quit")

func newReplCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive caching comparison session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(configPath)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctrl, err := demo.Build(cfg, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return newSession(ctrl, cmd.OutOrStdout()).loop(ctx, cmd.InOrStdin())
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// session is one interactive REPL over a Controller.
type session struct {
	ctrl *demo.Controller
	out  io.Writer
	jq   string
}

func newSession(ctrl *demo.Controller, out io.Writer) *session {
	return &session{ctrl: ctrl, out: out}
}

func (s *session) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "quelldemo %s: mode %s, sample %s. Type help for commands.\n", version, s.ctrl.Mode(), s.ctrl.Selected())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		err := s.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// exec runs one command line. It returns errQuit for quit.
func (s *session) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "":
		return nil
	case "submit", "s":
		o, err := s.ctrl.SubmitSample(ctx, rest)
		return s.report(o, err)
	case "query", "q":
		if rest == "" {
			return errors.New("usage: query <text>")
		}
		o, err := s.ctrl.Submit(ctx, models.QueryRecord{Text: rest, TypeLabel: "custom"})
		return s.report(o, err)
	case "mode":
		m, err := models.ParseMode(rest)
		if err != nil {
			return err
		}
		if err := s.ctrl.SetMode(ctx, m); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "mode: %s\n", s.ctrl.Mode())
	case "toggle", "t":
		m, err := s.ctrl.Toggle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "mode: %s\n", m)
	case "limits":
		if rest != "" {
			l, err := parseLimits(rest)
			if err != nil {
				return err
			}
			if err := s.ctrl.SetLimits(l); err != nil {
				return err
			}
		}
		l := s.ctrl.Limits()
		fmt.Fprintf(s.out, "max depth %d, max cost %d, rate limit %d/s\n", l.MaxDepth, l.MaxCost, l.RequestRateLimit)
	case "clear":
		if err := s.ctrl.ClearActive(ctx); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s cache cleared\n", s.ctrl.Mode())
	case "reset":
		if err := s.ctrl.ResetAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "cache and timings reset")
	case "stats":
		return render.Snapshot(s.out, s.ctrl.Snapshot())
	case "samples":
		selected := s.ctrl.Selected()
		for _, label := range s.ctrl.Samples().Labels() {
			marker := " "
			if label == selected {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %s\n", marker, label)
		}
	case "select":
		if err := s.ctrl.Select(rest); err != nil {
			return err
		}
		q, _ := s.ctrl.Samples().Get(rest)
		fmt.Fprintf(s.out, "selected %s:\n%s\n", rest, q.Text)
	case "jq":
		if rest != "" {
			s.jq = strings.Trim(rest, `"'`)
		}
		fmt.Fprintf(s.out, "jq: %q\n", s.jq)
	case "help", "?":
		fmt.Fprint(s.out, replHelp)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// report prints a submission outcome. Failures have already been recorded
// in the metrics, so only the user-facing message is shown.
func (s *session) report(o *models.Outcome, err error) error {
	if err != nil {
		if !isQueryFailure(err) {
			return err
		}
		fmt.Fprintf(s.out, "error: %s\n", executor.UserMessage(err))
		return nil
	}
	fmt.Fprintf(s.out, "%s %s %.2fms %s\n", o.Mode, o.TypeLabel, o.ElapsedMs(), hitMiss(o.Result.WasHit))
	text, err := render.Payload(o.Result.Data, s.jq)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, text)
	return nil
}

func isQueryFailure(err error) bool {
	var qe *executor.QueryError
	return errors.As(err, &qe)
}

func parseLimits(s string) (models.LimitConfig, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return models.LimitConfig{}, errors.New("usage: limits <depth> <cost> <rate>")
	}
	var vals [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return models.LimitConfig{}, fmt.Errorf("limits: %q is not a number", f)
		}
		vals[i] = n
	}
	return models.LimitConfig{MaxDepth: vals[0], MaxCost: vals[1], RequestRateLimit: vals[2]}, nil
}
