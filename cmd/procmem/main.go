//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ja7ad/procmem/pkg/procmem"
	"github.com/ja7ad/procmem/pkg/procmem/procfs"
)

// fileConfig mirrors the Configuration Surface for --config file.yaml,
// letting a long-running deployment pin defaults without a 20-flag
// invocation line.
type fileConfig struct {
	GroupBy       string   `yaml:"group_by"`
	MinDeltaKB    int      `yaml:"min_delta_kb"`
	LoopInterval  float64  `yaml:"loop_interval_s"`
	CmdLen        int      `yaml:"cmd_len"`
	TopPct        float64  `yaml:"top_pct"`
	Units         string   `yaml:"units"`
	PIDFilter     []string `yaml:"pid_filter"`
	CollapseOther bool     `yaml:"collapse_other"`
	ShowCPU       bool     `yaml:"show_cpu"`
}

type cliOpts struct {
	configPath string
	groupBy    string
	minDeltaKB int
	interval   float64
	cmdLen     int
	topPct     float64
	units      string
	pidFilter  []string
	collapse   bool
	showCPU    bool

	once       bool
	iterations int
	debug      bool
}

func main() {
	var o cliOpts

	root := &cobra.Command{
		Use:   "procmem",
		Short: "Proportional memory and CPU usage inspector",
		Long: `procmem samples every process's /proc memory maps on a fixed interval,
classifies each mapping (shared SYSV, shared other, stack, text, data),
and rolls the proportional set size up by executable, command line, or
PID so that shared memory is never double-counted across a group.

Examples:
  procmem
  procmem --group-by cmd --top-pct 95 --units human
  procmem --config procmem.yaml --once`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(o)
		},
	}

	f := root.Flags()
	f.StringVar(&o.configPath, "config", "", "YAML file with Configuration Surface values; values it sets replace the matching flag values")
	f.StringVar(&o.groupBy, "group-by", "exe", "group key: exe, cmd, or pid")
	f.IntVar(&o.minDeltaKB, "min-delta-kb", 0, "tier-2 delta threshold in kB (<=0: absolute value test, >0: growth-only test)")
	f.Float64Var(&o.interval, "loop-interval-s", 1.0, "seconds between ticks (<=0: single tick)")
	f.IntVar(&o.cmdLen, "cmd-len", 200, "truncate command lines to this many characters")
	f.Float64Var(&o.topPct, "top-pct", 90, "cumulative ptotal percentage kept as individual rows before collapsing the tail into OTHERS")
	f.StringVar(&o.units, "units", "kb", "display units: kb, mb, mib, human")
	f.StringSliceVar(&o.pidFilter, "pid-filter", nil, "restrict to these PIDs or executable basenames")
	f.BoolVar(&o.collapse, "collapse-other", false, "merge shSYSV/shOth/stack/text into a single 'other' column")
	f.BoolVar(&o.showCPU, "show-cpu", false, "show the per-group CPU% column")
	f.BoolVar(&o.once, "once", false, "run a single tick and exit")
	f.IntVar(&o.iterations, "iterations", 0, "stop after this many ticks (0 = run until interrupted)")
	f.BoolVar(&o.debug, "debug", false, "debug logging and the pss column")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(o cliOpts) error {
	if o.configPath != "" {
		if err := applyConfigFile(&o, o.configPath); err != nil {
			return fmt.Errorf("procmem: load config: %w", err)
		}
	}

	lvl := slog.LevelInfo
	if o.debug {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	opts, err := toOptions(o)
	if err != nil {
		return err
	}

	fs := procfs.NewReal()
	loop := procmem.NewSamplingLoop(fs, opts)
	loop.Logger = logger

	formatter := procmem.ReportFormatter{
		Units:         opts.Units,
		CollapseOther: opts.CollapseOther,
		ShowCPU:       opts.ShowCPU,
		Debug:         o.debug,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	interval := time.Duration(o.interval * float64(time.Second))
	if interval <= 0 {
		o.once = true // a non-positive interval means a single tick
	}

	n := 0
	for {
		report, err := loop.Tick(time.Now())
		if err != nil {
			return fmt.Errorf("procmem: tick: %w", err)
		}
		fmt.Fprint(tw, formatter.Format(report))
		tw.Flush()
		fmt.Println()
		n++

		if o.once {
			return nil
		}
		if o.iterations > 0 && n >= o.iterations {
			return nil
		}

		select {
		case <-sigCtx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func applyConfigFile(o *cliOpts, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.GroupBy != "" {
		o.groupBy = fc.GroupBy
	}
	if fc.MinDeltaKB != 0 {
		o.minDeltaKB = fc.MinDeltaKB
	}
	if fc.LoopInterval != 0 {
		o.interval = fc.LoopInterval
	}
	if fc.CmdLen != 0 {
		o.cmdLen = fc.CmdLen
	}
	if fc.TopPct != 0 {
		o.topPct = fc.TopPct
	}
	if fc.Units != "" {
		o.units = fc.Units
	}
	if len(fc.PIDFilter) > 0 {
		o.pidFilter = fc.PIDFilter
	}
	o.collapse = o.collapse || fc.CollapseOther
	o.showCPU = o.showCPU || fc.ShowCPU
	return nil
}

func toOptions(o cliOpts) (procmem.Options, error) {
	opts := procmem.DefaultOptions()

	switch strings.ToLower(o.groupBy) {
	case "exe", "":
		opts.GroupBy = procmem.GroupByExe
	case "cmd":
		opts.GroupBy = procmem.GroupByCmd
	case "pid":
		opts.GroupBy = procmem.GroupByPID
	default:
		return opts, fmt.Errorf("procmem: unknown group-by %q", o.groupBy)
	}

	switch strings.ToLower(o.units) {
	case "kb", "":
		opts.Units = procmem.UnitsKB
	case "mb":
		opts.Units = procmem.UnitsMB
	case "mib":
		opts.Units = procmem.UnitsMiB
	case "human":
		opts.Units = procmem.UnitsHuman
	default:
		return opts, fmt.Errorf("procmem: unknown units %q", o.units)
	}

	opts.MinDeltaKB = o.minDeltaKB
	opts.LoopInterval = time.Duration(o.interval * float64(time.Second))
	opts.CmdLen = o.cmdLen
	opts.TopPct = o.topPct
	opts.CollapseOther = o.collapse
	opts.ShowCPU = o.showCPU
	opts.PIDFilter = parseFilters(o.pidFilter)

	return opts, nil
}

func parseFilters(raw []string) procmem.Filters {
	f := procmem.Filters{PIDs: map[string]bool{}, Exes: map[string]bool{}}
	for _, r := range raw {
		if _, err := strconv.Atoi(r); err == nil {
			f.PIDs[r] = true
		} else {
			f.Exes[r] = true
		}
	}
	return f
}
