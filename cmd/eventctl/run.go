package main

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/opdss/dispatcher/contracts/event"
	"github.com/opdss/dispatcher/dispatcher"
	"github.com/opdss/dispatcher/process"
)

// RunConfig configures the run command.
type RunConfig struct {
	Once        bool   `help:"unsubscribe the message logger after its first delivery" default:"false"`
	SkipInvalid bool   `help:"log and skip lines that cannot be dispatched" default:"false"`
	SummaryFile string `help:"also write the yaml summary to this file" default:""`
	Log         process.LogConfig
}

// Summary is printed when a run finishes.
type Summary struct {
	Lines     int            `yaml:"lines"`
	Skipped   int            `yaml:"skipped"`
	Logged    int            `yaml:"logged"`
	Delivered map[string]int `yaml:"delivered"`
}

type replayer struct {
	events  *Events
	log     *zap.Logger
	cfg     RunConfig
	summary Summary
}

func newReplayer(events *Events, log *zap.Logger, cfg RunConfig) *replayer {
	r := &replayer{
		events:  events,
		log:     log,
		cfg:     cfg,
		summary: Summary{Delivered: map[string]int{}},
	}
	tally(r, TopicMessage)
	tally(r, TopicCount)
	tally(r, TopicRatio)
	tally(r, TopicFlag)

	var unsubscribe event.UnsubscribeFunc
	unsubscribe = dispatcher.On(events.Pool, TopicMessage, event.Func(func(m Message) {
		r.summary.Logged++
		log.Info("message", zap.String("id", m.ID), zap.String("body", m.Body))
		if cfg.Once {
			unsubscribe()
		}
	}))
	dispatcher.On(events.Pool, TopicCount, event.Func(func(n int64) {
		r.summary.Logged++
		log.Info("count", zap.Int64("value", n))
	}))
	dispatcher.On(events.Pool, TopicRatio, event.Func(func(f float64) {
		r.summary.Logged++
		log.Info("ratio", zap.Float64("value", f))
	}))
	dispatcher.On(events.Pool, TopicFlag, event.Func(func(b bool) {
		r.summary.Logged++
		log.Info("flag", zap.Bool("value", b))
	}))
	return r
}

func tally[T any](r *replayer, key dispatcher.Key[T]) {
	topic := string(key.Topic())
	dispatcher.On(r.events.Pool, key, event.Func(func(T) {
		r.summary.Delivered[topic]++
	}))
}

// Replay dispatches every line of in until EOF, an invalid line or ctx is done.
func (r *replayer) Replay(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		topic, err := r.events.DispatchLine(scanner.Text())
		if err != nil {
			if !r.cfg.SkipInvalid {
				return errs.New("line %d: %v", lineNo, err)
			}
			r.summary.Skipped++
			r.log.Warn("skipping line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if topic != "" {
			r.summary.Lines++
		}
	}
	return errs.Wrap(scanner.Err())
}

// Close unsubscribes everything and returns the summary.
func (r *replayer) Close() Summary {
	r.events.Destroy()
	return r.summary
}

func cmdRun(cmd *cobra.Command, args []string, cfg RunConfig) (err error) {
	log, err := process.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, openErr := os.Open(args[0])
		if openErr != nil {
			return errs.Wrap(openErr)
		}
		defer func() { err = errs.Combine(err, f.Close()) }()
		in = f
	}

	r := newReplayer(NewEvents(dispatcher.WithLogger(log)), log, cfg)
	replayErr := r.Replay(process.Ctx(cmd), in)
	summary := r.Close()

	out, err := yaml.Marshal(summary)
	if err != nil {
		return errs.Combine(replayErr, errs.Wrap(err))
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return errs.Combine(replayErr, errs.Wrap(err))
	}
	if cfg.SummaryFile != "" {
		if err := process.AtomicWriteFile(cfg.SummaryFile, out, 0o644); err != nil {
			return errs.Combine(replayErr, err)
		}
	}
	return replayErr
}
