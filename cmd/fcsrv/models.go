package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"fcsrv/internal/artifact"
	"fcsrv/internal/common/fsutil"
	"fcsrv/internal/config"
	"fcsrv/internal/registry"
	"fcsrv/internal/variant"
)

func newModelsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage local model artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("models requires a subcommand: pull|verify|list")
		},
	}

	var force bool
	pull := &cobra.Command{
		Use:     "pull [variant...]",
		Short:   "Download artifacts for the given variants (all when none given)",
		Example: "  fcsrv models pull card rockstack\n  fcsrv models pull --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVariants(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, o, nil)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			store, dir, err := newStore(cfg, log, barProgress(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			for _, name := range registry.Artifacts(vs...) {
				path, err := store.Fetch(cmd.Context(), name, dir, force)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	pull.Flags().BoolVarP(&force, "force", "f", false, "Download again even when present and refresh the manifest")

	verify := &cobra.Command{
		Use:   "verify [variant...]",
		Short: "Hash local artifacts against the published manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := parseVariants(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, o, nil)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			store, dir, err := newStore(cfg, log, nil)
			if err != nil {
				return err
			}
			var reports []artifact.Report
			for _, name := range registry.Artifacts(vs...) {
				rep, err := store.Verify(cmd.Context(), name, dir)
				if err != nil {
					return err
				}
				reports = append(reports, rep)
			}
			return printReports(cmd.OutOrStdout(), reports)
		},
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List artifacts present in the model directory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o, nil)
			if err != nil {
				return err
			}
			dir, err := fsutil.ResolveModelDir(cfg.ModelDir)
			if err != nil {
				return err
			}
			found, err := registry.ScanDir(dir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ARTIFACT\tSIZE\tVARIANTS")
			for _, a := range found {
				users := "-"
				if len(a.Variants) > 0 {
					users = fmt.Sprint(a.Variants)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", a.Name, a.Size, users)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(pull, verify, list)
	return cmd
}

func parseVariants(names []string) ([]variant.Variant, error) {
	if len(names) == 0 {
		return variant.All(), nil
	}
	out := make([]variant.Variant, 0, len(names))
	for _, n := range names {
		v, err := variant.Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func newStore(cfg config.Config, log zerolog.Logger, progress artifact.ProgressFunc) (*artifact.Store, string, error) {
	dir, err := fsutil.ResolveModelDir(cfg.ModelDir)
	if err != nil {
		return nil, "", err
	}
	backend, err := artifact.NewBackend(cfg.Backend, nil)
	if err != nil {
		return nil, "", err
	}
	store := artifact.New(artifact.Config{
		Backend:     backend,
		UpdateCheck: cfg.UpdateCheck,
		Progress:    progress,
		Logger:      log,
	})
	return store, dir, nil
}

// barProgress draws one progress bar per download on w.
func barProgress(w io.Writer) artifact.ProgressFunc {
	return func(name string, total int64) io.Writer {
		if total <= 0 {
			total = -1
		}
		return progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionOnCompletion(func() { fmt.Fprint(w, "\n") }),
		)
	}
}

func printReports(w io.Writer, reports []artifact.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIFACT\tSTATUS\tEXPECTED")
	bad := 0
	for _, r := range reports {
		status := "ok"
		switch {
		case r.Actual == "":
			status = "missing"
			bad++
		case !r.OK:
			status = "mismatch"
			bad++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, status, r.Expected.String())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d artifacts failed verification", bad, len(reports))
	}
	return nil
}

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List supported challenge variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tVARIANT\tSHAPE\tARTIFACT")
			for _, v := range variant.All() {
				shape := v.Shape().String()
				if v.Grayscale() {
					shape += " (gray)"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.Ordinal(), v, shape, v.Artifact())
			}
			return tw.Flush()
		},
	}
}
