// Package config loads kernel configuration from an optional YAML file,
// environment variables, and flags, following the precedence order
// (flag > env > file > default) the rest of this codebase's viper wiring
// uses.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"simplejvm/internal/scheduler"
)

// Kernel holds the scheduler tunables and the ambient settings (logging,
// metrics) that sit around it.
type Kernel struct {
	Scheduler scheduler.Config
	Log       Log
	Metrics   Metrics
}

// Log configures the slog handler installed at startup.
type Log struct {
	Level string // debug, info, warn, error
	JSON  bool
}

// Metrics configures the optional Prometheus exporter.
type Metrics struct {
	Enabled   bool
	Namespace string
	Addr      string // host:port for the /metrics HTTP listener
}

// Default returns a Kernel usable with no configuration file present.
func Default() Kernel {
	return Kernel{
		Scheduler: scheduler.DefaultConfig(),
		Log:       Log{Level: "info"},
		Metrics:   Metrics{Enabled: false, Namespace: "jvmkernel", Addr: ":9090"},
	}
}

// BindFlags registers the kernel's configurable flags on fs and binds them
// into v, matching the bind-then-read pattern used for the flags on the
// root command elsewhere in this codebase.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Int("fiber-stack-bytes", 1<<20, "approximate per-fiber stack margin, in bytes")
	fs.Duration("tick-interval", time.Millisecond, "max idle sleep between scheduler cycles")
	fs.Bool("idle-wait", true, "sleep the host goroutine between cycles when only sleepers remain")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-json", false, "emit logs as JSON")
	fs.Bool("metrics-enabled", false, "expose a Prometheus /metrics endpoint")
	fs.String("metrics-namespace", "jvmkernel", "Prometheus metric namespace")
	fs.String("metrics-addr", ":9090", "address the metrics HTTP server listens on")

	_ = v.BindPFlag("scheduler.fiber_stack_bytes", fs.Lookup("fiber-stack-bytes"))
	_ = v.BindPFlag("scheduler.tick_interval", fs.Lookup("tick-interval"))
	_ = v.BindPFlag("scheduler.idle_wait", fs.Lookup("idle-wait"))
	_ = v.BindPFlag("log.level", fs.Lookup("log-level"))
	_ = v.BindPFlag("log.json", fs.Lookup("log-json"))
	_ = v.BindPFlag("metrics.enabled", fs.Lookup("metrics-enabled"))
	_ = v.BindPFlag("metrics.namespace", fs.Lookup("metrics-namespace"))
	_ = v.BindPFlag("metrics.addr", fs.Lookup("metrics-addr"))
}

// Load reads configuration from an optional YAML file at path (ignored if
// empty or missing), environment variables prefixed JVMKERNEL_, and
// whatever flags BindFlags already bound, in that ascending precedence.
func Load(v *viper.Viper, path string) (Kernel, error) {
	v.SetEnvPrefix("jvmkernel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !os.IsNotExist(err) {
				return Kernel{}, err
			}
		}
	}

	k := Default()
	k.Scheduler.FiberStackBytes = v.GetInt("scheduler.fiber_stack_bytes")
	if d := v.GetDuration("scheduler.tick_interval"); d > 0 {
		k.Scheduler.TickInterval = d
	}
	k.Scheduler.IdleWaitEnabled = v.GetBool("scheduler.idle_wait")
	if lvl := v.GetString("log.level"); lvl != "" {
		k.Log.Level = lvl
	}
	k.Log.JSON = v.GetBool("log.json")
	k.Metrics.Enabled = v.GetBool("metrics.enabled")
	if ns := v.GetString("metrics.namespace"); ns != "" {
		k.Metrics.Namespace = ns
	}
	if addr := v.GetString("metrics.addr"); addr != "" {
		k.Metrics.Addr = addr
	}

	return k, nil
}
