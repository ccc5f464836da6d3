package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/signals"
	"github.com/ShayCichocki/sillysearch/internal/state"
	"github.com/ShayCichocki/sillysearch/internal/supervisor"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

var (
	runThreadID    string
	runMetricsAddr string
	runNoClarify   bool
	runOutput      string
)

var runCmd = &cobra.Command{
	Use:   "run <question>",
	Short: "Research a question and print a report",
	Long: `Run a deep research thread for the given question.

The supervisor may first ask a clarifying question. In that case the
thread is saved and the command prints its ID; answer with:

  sillysearch run --thread <id> "<your answer>"

Run 'sillysearch stop <id>' (or create the file "stop-<id>" in the
signals directory) to cancel a running thread.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

var stopCmd = &cobra.Command{
	Use:   "stop <thread-id>",
	Short: "Signal a running thread to stop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		thread, err := db.GetThread(args[0])
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}
		if err := signals.Send(signalsDir(cfg), thread.ID); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Stop signal sent to thread %s", thread.ID), color.FgGreen)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runThreadID, "thread", "", "Continue an existing thread by ID")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&runNoClarify, "no-clarify", false, "Never stop to ask a clarifying question")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Also write the report to this file")
}

func runResearch(cmd *cobra.Command, args []string) (retErr error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	p, err := buildPipeline(cfg, logger, cfg.Supervisor.AllowClarification && !runNoClarify)
	if err != nil {
		return err
	}

	db, err := openState(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	thread, prior, err := loadThread(db, runThreadID, question)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("thread_id", thread.ID))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ks, err := signals.New(signalsDir(cfg), thread.ID)
	if err != nil {
		return fmt.Errorf("open signals dir: %w", err)
	}
	defer ks.Close()
	// A leftover stop file from an earlier run of this thread would cancel
	// the new run immediately.
	if err := ks.Clear(); err != nil {
		return err
	}
	ctx, cancel := ks.Context(ctx)
	defer cancel()

	if runMetricsAddr != "" {
		shutdown := serveMetrics(runMetricsAddr)
		defer shutdown()
	}

	msgs := append(prior, models.UserMessage(question))
	printStatus("→", fmt.Sprintf("Researching with %s (search: %s)", p.client.Model(), p.provider), color.FgCyan)

	start := time.Now()
	result, err := p.supervisor.Run(ctx, msgs)
	if err != nil {
		if appendErr := db.AppendMessages(thread.ID, msgs[len(prior):]); appendErr != nil {
			logger.Warn("failed to persist messages", zap.Error(appendErr))
		}
		if statusErr := db.SetStatus(thread.ID, state.ThreadFailed); statusErr != nil {
			logger.Warn("failed to update thread status", zap.Error(statusErr))
		}
		if errors.Is(context.Cause(ctx), signals.ErrStopped) {
			return fmt.Errorf("thread %s stopped: %w", thread.ID, err)
		}
		return describeRunError(thread.ID, err)
	}

	if err := db.AppendMessages(thread.ID, newMessages(result.Messages, len(prior))); err != nil {
		return fmt.Errorf("save thread: %w", err)
	}

	if result.NeedsClarification() {
		if err := db.SetStatus(thread.ID, state.ThreadAwaitingUser); err != nil {
			return fmt.Errorf("save thread: %w", err)
		}
		printClarification(thread.ID, result.Clarification)
		return nil
	}

	err = db.SaveReport(thread.ID, state.Report{
		Brief:        result.Brief,
		Notes:        result.Notes,
		Report:       result.Report,
		Iterations:   result.Iterations,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	})
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	fmt.Println(result.Report)
	if runOutput != "" {
		if err := os.WriteFile(runOutput, []byte(result.Report+"\n"), 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	in, out := p.client.Tracker().Total()
	printStatus("✓", fmt.Sprintf("Done in %s: %d supervisor iterations, %d notes, %d/%d tokens (~$%.2f). Thread %s",
		time.Since(start).Round(time.Second), result.Iterations, len(result.Notes), in, out,
		p.client.Tracker().Cost(), thread.ID), color.FgGreen)
	return nil
}

// loadThread returns the thread to continue and its stored messages, or a
// new thread titled after question when id is empty.
func loadThread(db state.ThreadStore, id, question string) (*state.Thread, []models.Message, error) {
	if id == "" {
		t, err := db.CreateThread(question)
		if err != nil {
			return nil, nil, fmt.Errorf("create thread: %w", err)
		}
		return t, nil, nil
	}

	t, err := db.GetThread(id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := db.Messages(id)
	if err != nil {
		return nil, nil, fmt.Errorf("load thread: %w", err)
	}
	if err := db.SetStatus(id, state.ThreadActive); err != nil {
		return nil, nil, err
	}
	return t, msgs, nil
}

// newMessages returns the messages of a run that are not yet stored.
func newMessages(all []models.Message, stored int) []models.Message {
	if stored >= len(all) {
		return nil
	}
	return all[stored:]
}

// describeRunError adds the failed stage and thread to a run error.
func describeRunError(threadID string, err error) error {
	var runErr *supervisor.RunError
	if errors.As(err, &runErr) {
		return fmt.Errorf("thread %s failed during %s: %w", threadID, runErr.Stage, err)
	}
	return fmt.Errorf("thread %s failed: %w", threadID, err)
}

func printClarification(threadID, question string) {
	fmt.Printf("\n%s %s\n\n", color.YellowString("?"), question)
	fmt.Printf("Answer with:\n  sillysearch run --thread %s \"<your answer>\"\n", threadID)
}

// serveMetrics exposes /metrics until the returned function is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(os.Stderr, "%s %s\n", c.Sprint(symbol), message)
}
