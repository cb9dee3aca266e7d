package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/GoCodeAlone/modboot"
	"github.com/GoCodeAlone/modboot/feeders"
	"github.com/spf13/cobra"
)

// DefaultStopTimeout bounds the shutdown of every started module.
const DefaultStopTimeout = 10 * time.Second

var (
	ErrConfigRequired   = errors.New("a manifest is required (--config)")
	ErrInvalidLogFormat = errors.New("invalid log format")
)

type runOptions struct {
	configPath  string
	envFile     string
	envPrefix   string
	logFormat   string
	logLevel    string
	wait        bool
	stopTimeout time.Duration
}

// NewRunCommand creates the command that bootstraps a manifest.
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Set up and start the modules declared in a manifest",
		Long: `Set up and start the modules declared in a manifest (YAML or TOML).

Module settings can be overridden from the environment with
<PREFIX>_<MODULE>_<KEY>, for example MODBOOT_HTTP_PORT=9090. Application
options are read from APP_ID, APP_ENV, APP_ROOT_PATH and
APP_MODULE_START_TIMEOUT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the module manifest")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Optional .env file merged under the process environment")
	cmd.Flags().StringVar(&opts.envPrefix, "env-prefix", feeders.DefaultEnvPrefix, "Prefix of module override variables")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text or json)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.wait, "wait", true, "Keep running until interrupted once every module started")
	cmd.Flags().DurationVar(&opts.stopTimeout, "stop-timeout", DefaultStopTimeout, "Time allowed for modules to stop")

	return cmd
}

func runBootstrap(cmd *cobra.Command, opts *runOptions) error {
	if opts.configPath == "" {
		return usageError(ErrConfigRequired)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
	if err != nil {
		return usageError(err)
	}

	var dotEnv map[string]string
	if opts.envFile != "" {
		dotEnv, err = feeders.NewDotEnvFeeder(opts.envFile).Environ()
		if err != nil {
			return usageError(err)
		}
	}
	environ := feeders.Environ(dotEnv)

	manifest, err := feeders.Load(opts.configPath)
	if err != nil {
		return usageError(err)
	}

	appOpts, err := modboot.OverlayEnvironment(manifest.App, environ)
	if err != nil {
		return usageError(err)
	}
	appOpts.StartTime = processStart

	app, err := modboot.New(
		modboot.WithOptions(appOpts),
		modboot.WithLogger(logger),
		modboot.WithLoader(DefaultCatalog()),
		modboot.WithConfigHooks(feeders.EnvOverrides(opts.envPrefix, environ)),
	)
	if err != nil {
		return usageError(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := app.Run(ctx, manifest.Modules)
	if runErr == nil && opts.wait {
		fmt.Fprintf(cmd.OutOrStdout(), "%s started %d modules, press Ctrl+C to stop\n",
			app.Options().ID, len(app.StartedModules()))
		<-ctx.Done()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), opts.stopTimeout)
	defer cancel()
	stopModules(stopCtx, app)

	if runErr != nil {
		return &ExitError{Code: ExitBootstrapFailed, Err: runErr}
	}
	return nil
}

type contextStopper interface {
	Stop(ctx context.Context) error
}

type stopper interface {
	Stop() error
}

// stopModules stops the started modules in reverse start order. Stop errors
// are logged and do not interrupt the shutdown.
func stopModules(ctx context.Context, app *modboot.Application) {
	names := app.StartedModules()
	slices.Reverse(names)

	for _, name := range names {
		d, ok := app.Module(name)
		if !ok {
			continue
		}

		var err error
		switch c := d.Component().(type) {
		case contextStopper:
			err = c.Stop(ctx)
		case stopper:
			err = c.Stop()
		default:
			continue
		}

		if err != nil {
			app.Logger().Error("Failed to stop module", "module", name, "error", err)
			continue
		}
		app.Logger().Debug("Stopped module", "module", name)
	}
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogFormat, format)
	}
}
