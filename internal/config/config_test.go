package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestLoadWithoutConfigFileUsesFlagDefaults(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(v, fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	kernel, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load returned an error: %v", err)
	}

	want := Default()
	if kernel.Log.Level != want.Log.Level {
		t.Errorf("Log.Level = %q, want %q", kernel.Log.Level, want.Log.Level)
	}
	if kernel.Metrics.Addr != want.Metrics.Addr {
		t.Errorf("Metrics.Addr = %q, want %q", kernel.Metrics.Addr, want.Metrics.Addr)
	}
	if kernel.Metrics.Enabled {
		t.Error("Metrics.Enabled should default to false")
	}
}

func TestLoadHonorsExplicitFlagValues(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(v, fs)
	if err := fs.Parse([]string{"--log-level=debug", "--metrics-enabled", "--metrics-addr=:1234"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	kernel, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load returned an error: %v", err)
	}

	if kernel.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", kernel.Log.Level, "debug")
	}
	if !kernel.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true when --metrics-enabled is set")
	}
	if kernel.Metrics.Addr != ":1234" {
		t.Errorf("Metrics.Addr = %q, want %q", kernel.Metrics.Addr, ":1234")
	}
}

func TestLoadMissingConfigFileIsNotAnError(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(v, fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	if _, err := Load(v, "/nonexistent/path/kernel.yaml"); err != nil {
		t.Fatalf("a missing config file should not be a fatal error, got %v", err)
	}
}
