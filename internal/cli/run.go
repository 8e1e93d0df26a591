package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reglet-dev/reglet-bridge/config"
	"github.com/reglet-dev/reglet-bridge/domain/entities"
	"github.com/reglet-dev/reglet-bridge/host"
	wz "github.com/reglet-dev/reglet-bridge/infrastructure/wazero"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath  string
	RequestPath string
	Vars        map[string]string
	Strict      bool
	ShowOutput  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [module.wasm]",
		Short: "Run a guest module once",
		Long: `Run a guest module once and print the run result.

The module path defaults to the "module" field of the host config.
The request is read from --request ("-" for stdin); without one the guest
receives an empty request object.

Example:
  reglet-bridge run --config host.yaml --request req.json --var env=prod guest.wasm`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "host config file (YAML)")
	cmd.Flags().StringVarP(&opts.RequestPath, "request", "r", "", `invocation request JSON file, or "-" for stdin`)
	cmd.Flags().StringToStringVar(&opts.Vars, "var", nil, "template variable for the host config (key=value)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", true, "fail on undefined template variables")
	cmd.Flags().BoolVar(&opts.ShowOutput, "show-output", false, "copy guest stdout and stderr to stderr")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runModule(cmd *cobra.Command, opts *RunOptions, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadHostConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid host config", err)
	}
	modulePath := cfg.Module
	if len(args) == 1 {
		modulePath = args[0]
	}

	req, err := readRequest(cmd.InOrStdin(), opts.RequestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request", err)
	}

	wasmBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read module", err)
	}

	zl, err := newZapLogger(cfg.LogLevel, opts.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	defer func() { _ = zl.Sync() }()
	wz.SetLogger(zl)
	defer wz.SetLogger(nil)

	logger := newSlogLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)

	exec, err := host.NewExecutor(ctx, host.WithConfig(*cfg), host.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create executor", err)
	}
	defer func() { _ = exec.Close(ctx) }()

	name := strings.TrimSuffix(filepath.Base(modulePath), filepath.Ext(modulePath))
	inst, err := exec.LoadModule(ctx, name, wasmBytes)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load module", err)
	}
	defer func() { _ = inst.Close(ctx) }()

	result, err := inst.Run(ctx, req)
	if opts.ShowOutput {
		fmt.Fprint(cmd.ErrOrStderr(), inst.Stdout())
		fmt.Fprint(cmd.ErrOrStderr(), inst.Stderr())
	}
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if err := printResult(cmd.OutOrStdout(), opts.Format, result); err != nil {
		return err
	}
	if !result.IsSuccess() {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("guest run %s", result.Status)}
	}
	return nil
}

func loadHostConfig(opts *RunOptions) (*config.HostConfig, error) {
	raw, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]any, len(opts.Vars))
	for k, v := range opts.Vars {
		vars[k] = v
	}
	return host.NewLoader(host.WithStrictTemplates(opts.Strict)).LoadConfig(raw, vars)
}

func readRequest(stdin io.Reader, path string) (entities.InvocationRequest, error) {
	var req entities.InvocationRequest

	var raw []byte
	var err error
	switch path {
	case "":
		return req, nil
	case "-":
		raw, err = io.ReadAll(stdin)
	default:
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

func printResult(w io.Writer, format string, result entities.RunResult) error {
	if format == "json" {
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "status: %s\n", result.Status)
	if m := result.Metadata; m != nil {
		fmt.Fprintf(w, "execution: %s (%s)\n", m.ExecutionID, m.Duration)
		fmt.Fprintf(w, "host calls: %d, suspensions: %d\n", m.HostCalls, m.Suspensions)
	}
	if e := result.Response.Error; e != nil {
		fmt.Fprintf(w, "error: %s\n", e.Message)
		for _, r := range e.Reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if len(result.Response.Data) > 0 {
		fmt.Fprintf(w, "data: %s\n", result.Response.Data)
	}
	return nil
}

func logLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func newSlogLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel(level, verbose)}))
}

func newZapLogger(level string, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
