package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fcsrv/internal/artifact"
	"fcsrv/internal/common/fsutil"
	"fcsrv/internal/config"
)

// options holds flag values. They only override the config file when the
// flag was set on the command line.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	modelDir   string
	update     bool

	// backend
	backend  string
	baseURL  string
	bucket   string
	prefix   string
	endpoint string
	clientID string
	secret   string
	region   string
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "fcsrv",
		Short:         "Image classification challenge solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error (default info)")
	pf.StringVar(&o.logFormat, "log-format", "", "Log format: console|json (default console)")
	pf.StringVar(&o.modelDir, "model-dir", "", "Model artifact directory (default "+fsutil.DefaultModelDir+")")
	pf.BoolVar(&o.update, "update-check", false, "Verify artifacts against the published manifest")
	pf.StringVar(&o.backend, "backend", "", "Artifact backend: static|object_store (default static)")
	pf.StringVar(&o.baseURL, "base-url", "", "Static backend base URL (default "+artifact.DefaultReleaseURL+")")
	pf.StringVar(&o.bucket, "bucket", "", "Object store bucket")
	pf.StringVar(&o.prefix, "prefix", "", "Object store key prefix")
	pf.StringVar(&o.endpoint, "endpoint", "", "Object store endpoint URL")
	pf.StringVar(&o.clientID, "client-id", "", "Object store access key id")
	pf.StringVar(&o.secret, "secret", "", "Object store secret key")
	pf.StringVar(&o.region, "region", "", "Object store region (default auto)")

	root.AddCommand(newServeCmd(o), newModelsCmd(o), newVariantsCmd(), newVersionCmd())
	return root
}

// loadConfig layers the config file, environment defaults and changed flags,
// then applies defaults and validates. extra applies command specific flags.
func loadConfig(cmd *cobra.Command, o *options, extra func(*pflag.FlagSet, *config.Config)) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	applyEnv(&cfg)

	flags := cmd.Flags()
	set := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
		}
	}
	set("log-level", func() { cfg.LogLevel = o.logLevel })
	set("log-format", func() { cfg.LogFormat = o.logFormat })
	set("model-dir", func() { cfg.ModelDir = o.modelDir })
	set("update-check", func() { cfg.UpdateCheck = o.update })
	set("backend", func() { cfg.Backend.Kind = artifact.BackendKind(o.backend) })
	set("base-url", func() { cfg.Backend.BaseURL = o.baseURL })
	set("bucket", func() { cfg.Backend.Bucket = o.bucket })
	set("prefix", func() { cfg.Backend.Prefix = o.prefix })
	set("endpoint", func() { cfg.Backend.Endpoint = o.endpoint })
	set("client-id", func() { cfg.Backend.ClientID = o.clientID })
	set("secret", func() { cfg.Backend.Secret = o.secret })
	set("region", func() { cfg.Backend.Region = o.region })
	if extra != nil {
		extra(flags, &cfg)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv fills settings from the environment; flags still win.
func applyEnv(cfg *config.Config) {
	if v := os.Getenv("FCSRV_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("FCSRV_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("FCSRV_FALLBACK_KEY"); v != "" {
		cfg.Fallback.Key = v
	}
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
