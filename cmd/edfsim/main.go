package main

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"edfsched/internal/hw"
	"edfsched/internal/logging"
	"edfsched/internal/metrics"
	"edfsched/internal/pipeline"
	"edfsched/internal/sched"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		logLevel    string
		logFormat   string
		metricsAddr string
		csvPath     string
		duration    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "edfsim",
		Short: "Drive the EDF pipeline scheduler against simulated stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(logging.ParseLevel(logLevel), logFormat)
			cfg := sched.Load(cfgPath)
			return run(cfg, logger, duration, metricsAddr, csvPath)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yml", "scheduler config file")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 2*time.Second, "how long to run the simulation")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (empty = off)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "mirror the event feed to a CSV file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "text or json")
	return cmd
}

func run(cfg sched.Config, logger *slog.Logger, duration time.Duration, metricsAddr, csvPath string) error {
	clock := hw.NewTickClock(cfg.TickHZ)
	work := hw.NewDelayedWork(clock)
	line := hw.NewLine()
	s := sched.New(cfg, clock, work, line, logger)

	coll := metrics.NewCollector(cfg.TickHZ)
	if metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(metricsAddr, coll.Handler()); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	var csvWriter *csv.Writer
	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		csvWriter = csv.NewWriter(f)
		csvWriter.Write([]string{"timestamp", "tick", "event", "task", "start", "deadline", "queued"})
		defer csvWriter.Flush()
	}

	stages := make(map[string]*pipeline.Stage, len(cfg.Pipeline))
	for _, sc := range cfg.Pipeline {
		stages[sc.Name] = pipeline.NewStage(s, sc)
	}

	clock.Start()
	defer clock.Stop()
	defer line.Disable()
	defer work.Cancel()

	for _, st := range stages {
		st.Start()
	}

	stop := time.After(duration)
	for {
		select {
		case ev := <-s.Events():
			coll.Observe(ev)
			if ev.Kind == sched.EventXrun {
				if st := stages[ev.Task]; st != nil {
					st.NoteXrun()
				}
			}
			render(ev)
			if csvWriter != nil {
				csvWriter.Write([]string{
					ev.Time.Format(time.RFC3339Nano),
					strconv.FormatUint(uint64(ev.Tick), 10),
					ev.Kind.String(),
					ev.Task,
					strconv.FormatUint(uint64(ev.Start), 10),
					strconv.FormatUint(uint64(ev.Deadline), 10),
					strconv.Itoa(ev.Queued),
				})
				csvWriter.Flush()
			}

		case <-stop:
			for _, st := range stages {
				st.Cancel()
			}
			for _, st := range stages {
				fmt.Printf("stage %s: %d copies, %d xruns\n",
					st.Name(), st.Copies(), st.Xruns())
			}
			if n := s.Dropped(); n > 0 {
				fmt.Printf("dropped %d events\n", n)
			}
			return nil
		}
	}
}

// render prints one aligned line per event.
func render(ev sched.Event) {
	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := (width - len(str)) / 2
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
	}

	fmt.Printf("%s = Tick: %08d [%s] => Task: %-10s window=[%d, %d], queued=%d\n",
		ev.Time.Format("Jan 02 15:04:05.000"),
		uint64(ev.Tick),
		center(ev.Kind.String(), 10),
		ev.Task,
		uint64(ev.Start),
		uint64(ev.Deadline),
		ev.Queued,
	)
}
