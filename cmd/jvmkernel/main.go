package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"simplejvm/classfile"
	"simplejvm/internal/clock"
	"simplejvm/internal/config"
	"simplejvm/internal/scheduler"
	"simplejvm/internal/vm"
	"simplejvm/interpreter"
)

var (
	cfgFile string
	v       = viper.New()

	verbose   bool
	debug     bool
	trace     string
	showStats bool

	rootCmd = &cobra.Command{
		Use:   "jvmkernel",
		Short: "A minimal JVM with a cooperative fiber scheduler backing its concurrency natives",
	}

	runCmd = &cobra.Command{
		Use:   "run <classfile>",
		Short: "Load and execute a class file",
		Args:  cobra.ExactArgs(1),
		RunE:  runClassFile,
	}

	benchJobs   int
	benchYields int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Exercise the fiber scheduler with synthetic jobs and report throughput",
		RunE:  runBench,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file")
	config.BindFlags(v, rootCmd.PersistentFlags())

	runCmd.Flags().BoolVarP(&verbose, "v", "v", false, "verbose mode - print executed instructions")
	runCmd.Flags().BoolVar(&debug, "debug", false, "enhanced frame debugging - show locals and stack")
	runCmd.Flags().StringVar(&trace, "trace", "", "trace calls to a method (e.g., --trace fibonacci)")
	runCmd.Flags().BoolVar(&showStats, "stats", false, "show heap statistics after execution")

	benchCmd.Flags().IntVar(&benchJobs, "jobs", 100, "number of synthetic jobs to schedule")
	benchCmd.Flags().IntVar(&benchYields, "yields", 1000, "yields each job performs before terminating")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
}

func setupLogging(cfg config.Log) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func serveMetrics(cfg config.Metrics, sched *scheduler.Scheduler) {
	if !cfg.Enabled {
		return
	}
	stats, registry := scheduler.NewPrometheusStats(sched, scheduler.MetricsConfig{Namespace: cfg.Namespace})
	sched.SetStats(stats)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("metrics server listening", "addr", cfg.Addr)
}

func runClassFile(cmd *cobra.Command, args []string) error {
	kernel, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	setupLogging(kernel.Log)

	classFilePath := args[0]
	cf, err := classfile.ParseFile(classFilePath)
	if err != nil {
		return fmt.Errorf("loading class file: %w", err)
	}

	fmt.Printf("Loaded class: %s (Java %d)\n", cf.ClassName(), cf.MajorVersion-44)
	fmt.Println("---")

	jvm := vm.NewJVM()
	defer jvm.Shutdown()

	serveMetrics(kernel.Metrics, jvm.Scheduler())

	interp := interpreter.NewInterpreterWithJVM(verbose, jvm)

	if debug {
		interp.SetDebug(true)
		fmt.Println("Debug mode enabled - showing frame state")
		fmt.Println("---")
	}

	if trace != "" {
		interp.SetTrace(trace)
		fmt.Printf("Tracing method: %s\n", trace)
		fmt.Println("---")
	}

	if err := interp.Execute(cf); err != nil {
		return fmt.Errorf("execution error: %w", err)
	}

	fmt.Println("---")
	fmt.Println("Execution completed.")

	if showStats {
		stats := jvm.GetHeap().Stats()
		fmt.Println("---")
		fmt.Println("Heap Statistics:")
		fmt.Printf("  Allocations:  %d\n", stats.AllocCount)
		fmt.Printf("  Freed:        %d\n", stats.FreeCount)
		fmt.Printf("  Live Objects: %d\n", stats.LiveObjects)
		fmt.Printf("  Heap Size:    %d bytes\n", stats.TotalBytes)
		fmt.Printf("  GC Runs:      %d\n", stats.GCRuns)
	}

	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	kernel, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	setupLogging(kernel.Log)

	cfg := kernel.Scheduler
	cfg.IdleWaitEnabled = false // pure-CPU workload, nothing to idle for
	sched := scheduler.NewScheduler(clock.System{}, cfg)
	serveMetrics(kernel.Metrics, sched)

	for i := 0; i < benchJobs; i++ {
		job := sched.NewJob(fmt.Sprintf("bench-%d", i), func(j *scheduler.Job) error {
			for k := 0; k < benchYields; k++ {
				if err := j.Yield(); err != nil {
					return err
				}
			}
			return nil
		})
		sched.AddJob(job)
	}

	start := time.Now()
	sched.RunUntilEmpty()
	elapsed := time.Since(start)

	switches := benchJobs * (benchYields + 1)
	fmt.Printf("jobs:            %d\n", benchJobs)
	fmt.Printf("yields per job:  %d\n", benchYields)
	fmt.Printf("cycles:          %d\n", sched.Cycle())
	fmt.Printf("elapsed:         %v\n", elapsed)
	fmt.Printf("switches/sec:    %.0f\n", float64(switches)/elapsed.Seconds())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
