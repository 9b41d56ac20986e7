// Package main provides the vcf-setops command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vcf-setops/internal/store"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configName is the config file read from the home directory.
const configName = ".vcf-setops.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// usageError marks errors caused by how the tool was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func run(args []string, stdout, stderr io.Writer) int {
	ap := newApp(stdout, stderr)
	root := ap.rootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if ap.logger != nil {
		_ = ap.logger.Sync()
	}
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ue *usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(stderr, "Run 'vcf-setops --help' for usage.\n")
		return ExitUsage
	}
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "Hint: Check that the file path is correct\n")
	}
	return ExitError
}

// app holds the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string
	logger  *zap.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{v: viper.New(), stdout: stdout, stderr: stderr, logger: zap.NewNop()}
}

func (ap *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vcf-setops",
		Short: "Streaming set operations over sorted VCF and BED files",
		Long: `vcf-setops intersects, unites, subtracts and annotates coordinate-sorted
VCF streams, against each other or against BED intervals, in bounded memory.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ap.initConfig(); err != nil {
				return err
			}
			ap.logger = newLogger(ap.stderr, ap.v.GetBool("verbose"))
			return nil
		},
	}
	root.SetOut(ap.stdout)
	root.SetErr(ap.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&ap.cfgFile, "config", "", "Config file (default: ~/"+configName+")")
	pf.BoolP("verbose", "v", false, "Log debug messages")
	pf.Int("window", store.DefaultWindow, "Records buffered per input; 0 buffers a whole reference sequence")
	_ = ap.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = ap.v.BindPFlag("window", pf.Lookup("window"))

	root.AddCommand(ap.intersectCmd())
	root.AddCommand(ap.unionCmd())
	root.AddCommand(ap.uniqueCmd())
	root.AddCommand(ap.annotateCmd())
	root.AddCommand(ap.configCmd())
	root.AddCommand(ap.versionCmd())
	return root
}

// initConfig reads the config file, when one exists, and enables
// VCFSETOPS_* environment overrides.
func (ap *app) initConfig() error {
	ap.v.SetEnvPrefix("VCFSETOPS")
	ap.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	ap.v.AutomaticEnv()
	ap.v.SetDefault("priority", "default")

	if ap.cfgFile != "" {
		ap.v.SetConfigFile(ap.cfgFile)
		if err := ap.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", ap.cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, configName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ap.v.SetConfigFile(path)
	if err := ap.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// newLogger builds the console logger used by every command. Messages go
// to w without timestamps so output stays diffable.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

func (ap *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(ap.stdout, "vcf-setops version %s (%s) built %s\n", version, commit, date)
		},
	}
}
