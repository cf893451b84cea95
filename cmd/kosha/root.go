package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/kosha"
	"github.com/hupe1980/kosha/prom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	logger  *kosha.Logger
	metrics kosha.MetricsCollector

	server   *http.Server
	listener net.Listener
}

// newRootCmd returns the root command and the state its subcommands share.
// Run it through app.execute so that the metrics server is stopped.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "kosha",
		Short:         "Build and query write-once lexicon stores",
		Long:          "Kosha maps surface forms to the dictionary entries that produce them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default .kosha.yaml in . or $HOME)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	pf.String("s3-region", "", "region for s3:// locations")
	pf.String("s3-endpoint", "", "custom endpoint for s3:// locations")
	pf.String("s3-ddb-table", "", "DynamoDB table for atomic commits to s3:// locations")
	pf.String("minio-access-key", "", "access key for minio:// locations")
	pf.String("minio-secret-key", "", "secret key for minio:// locations")
	pf.Bool("minio-secure", true, "use HTTPS for minio:// locations")
	pf.Int64("remote-cache-size", 64<<20, "bytes of remote blob blocks cached in memory")

	root.AddCommand(
		newBuildCmd(a),
		newGetCmd(a),
		newPrefixCmd(a),
		newKeysCmd(a),
		newStatCmd(a),
	)
	return root, a
}

// execute runs root and stops the metrics server whether or not the command
// succeeded. Cobra skips post-run hooks after a failed RunE.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.shutdown(context.WithoutCancel(ctx)))
}

// init loads configuration in order of precedence: flags, KOSHA_* environment
// variables, the config file and defaults.
func (a *app) init(cmd *cobra.Command) error {
	v := a.v
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".kosha")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("KOSHA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger, err := newLogger(v.GetString("log-level"), v.GetString("log-format"))
	if err != nil {
		return err
	}
	a.logger = logger

	a.metrics = kosha.NoopMetricsCollector{}
	if addr := v.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		c, err := prom.New(reg)
		if err != nil {
			return err
		}
		a.metrics = c

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		a.listener = ln
		a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "addr", ln.Addr().String(), "error", err)
			}
		}()
	}
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := a.server.Shutdown(ctx)
	// Serve may not have taken over the listener yet.
	_ = a.listener.Close()
	return err
}

func newLogger(level, format string) (*kosha.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	switch format {
	case "text":
		return kosha.NewTextLogger(l), nil
	case "json":
		return kosha.NewJSONLogger(l), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// options returns the library options every command shares.
func (a *app) options() []kosha.Option {
	return []kosha.Option{
		kosha.WithLogger(a.logger),
		kosha.WithMetricsCollector(a.metrics),
	}
}
