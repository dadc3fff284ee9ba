// algebras — keep translation files in sync across locales.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/algebras-ai/algebras-cli/config"
	"github.com/algebras-ai/algebras-cli/format"
	"github.com/algebras-ai/algebras-cli/langmeta"
	"github.com/algebras-ai/algebras-cli/syncer"
	"github.com/algebras-ai/algebras-cli/translator"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var configFile string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "algebras",
		Short: "Keep translation files in sync across locales",
		Long: `algebras — keep translation files in sync across locales.

Reads a .algebras.config describing the locale set and resource files,
diffs every target against the source locale, and translates missing or
outdated keys through the configured provider. In-place writers keep
untouched lines byte-identical.

Commands:
  translate   Translate target locales from the source locale
  update      Diff first, then translate only the findings
  ci          Check for missing/outdated keys, exit non-zero on findings
  status      Show per-locale translation statistics
  version     Show version information

Supported formats: JSON, YAML, TypeScript, Android XML, iOS .strings and
.stringsdict, gettext .po, XLIFF, HTML, CSV/TSV, Java .properties.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVarP(&configFile, "config-file", "f", "", "Config file (default .algebras.config in the current directory)")

	root.AddCommand(
		newTranslateCmd(),
		newUpdateCmd(),
		newCICmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.DefaultFileName
	}
	cfg, warnings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logWarning("%s", w)
	}
	return cfg, nil
}

func newRegistry(cfg *config.Config) *format.Registry {
	return format.NewRegistry(format.Options{
		NormalizeStrings: cfg.NormalizeStrings(),
		XLFTargetState:   cfg.XLF.DefaultTargetState,
		POMarkFuzzy:      cfg.PO.MarkFuzzy,
		Warnf:            logWarning,
	})
}

func newDriver(cfg *config.Config) (*translator.Driver, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvAPIKey)
	}
	provider, err := translator.NewProvider(cfg.API.Provider, key, cfg.API.Model)
	if err != nil {
		return nil, err
	}
	return translator.NewDriver(provider, cfg.BatchSize, cfg.MaxParallel), nil
}

func newSyncer(cfg *config.Config, needProvider bool) (*syncer.Syncer, error) {
	var driver *translator.Driver
	if needProvider {
		var err error
		if driver, err = newDriver(cfg); err != nil {
			return nil, err
		}
	}
	return syncer.New(cfg, newRegistry(cfg), driver, logInfo, logWarning), nil
}

// signalContext cancels on the first SIGINT so in-flight batches drain and
// partial results get written.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, saving progress...")
		cancel()
	}()
	return ctx, cancel
}

func printSummary(sum *syncer.Summary) {
	logInfo("Files: %d processed, %d skipped, %d failed", sum.FilesProcessed, sum.FilesSkipped, sum.FilesFailed)
	logInfo("Keys:  %d translated, %d failed", sum.KeysTranslated, sum.KeysFailed)
	if len(sum.FailedKeys) > 0 {
		logWarning("First failed keys: %s", strings.Join(sum.FailedKeys, ", "))
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		locale      string
		force       bool
		onlyMissing bool
		regenerate  bool
		dryRun      bool
		uiSafe      bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate target locales from the source locale",
		Long: `Translate target locales from the source locale.

For each target locale the target path is derived from the source file.
Missing targets are created; existing targets are skipped when newer than
their source unless --force. With --only-missing the diff engine picks
exactly the keys absent from the target.

Examples:
  algebras translate
  algebras translate --locale fr --only-missing
  algebras translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := syncer.Options{
				Locale:      locale,
				Force:       force,
				OnlyMissing: onlyMissing,
				Regenerate:  regenerate,
				DryRun:      dryRun,
				UISafe:      uiSafe,
			}
			s, err := newSyncer(cfg, !dryRun)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sum, err := s.Translate(ctx, opts, nil)
			if dryRun {
				for locale, n := range sum.Pending {
					logInfo("%s: %d keys to translate", locale, n)
				}
				return err
			}
			printSummary(sum)
			if err != nil {
				if ctx.Err() != nil {
					logWarning("Translation interrupted, partial progress saved")
					return nil
				}
				return err
			}
			logSuccess("Translation complete!")
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Translate a single target locale")
	cmd.Flags().BoolVar(&force, "force", false, "Re-translate every key even when targets look current")
	cmd.Flags().BoolVar(&onlyMissing, "only-missing", false, "Translate only keys absent from the target")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Rewrite target files from scratch instead of in-place")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the provider")
	cmd.Flags().BoolVar(&uiSafe, "ui-safe", false, "Ask the provider for length-bounded translations")

	return cmd
}

// ---------------------------------------------------------------------------
// update
// ---------------------------------------------------------------------------

func newUpdateCmd() *cobra.Command {
	var (
		locale     string
		regenerate bool
		uiSafe     bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Diff first, then translate only the findings",
		Long: `Diff every target against the source with all checks enabled
(missing keys, file mtimes, per-key git blame), then translate exactly
the missing and outdated keys.

A target that is merely older than its source, with no missing or
outdated keys, is reported but left untouched; use translate --force to
re-translate it anyway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := newSyncer(cfg, true)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sum, err := s.Update(ctx, syncer.Options{Locale: locale, Regenerate: regenerate, UISafe: uiSafe})
			printSummary(sum)
			if err != nil {
				if ctx.Err() != nil {
					logWarning("Update interrupted, partial progress saved")
					return nil
				}
				return err
			}
			logSuccess("Update complete!")
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Update a single target locale")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Rewrite target files from scratch instead of in-place")
	cmd.Flags().BoolVar(&uiSafe, "ui-safe", false, "Ask the provider for length-bounded translations")

	return cmd
}

// ---------------------------------------------------------------------------
// ci (read-only: exit non-zero on findings)
// ---------------------------------------------------------------------------

func newCICmd() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Check for missing or outdated keys, exit non-zero on findings",
		Long: `Diff every target against the source without calling the
translation provider. Exits 0 only when no key is missing or outdated,
which makes it suitable as a CI gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := newSyncer(cfg, false)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			report, err := s.CI(ctx, syncer.Options{Locale: locale})
			if err != nil {
				return err
			}
			for _, e := range report.Errors {
				logError("%v", e)
			}
			findings := 0
			for _, res := range report.Results {
				if res.Clean() {
					continue
				}
				findings++
				switch {
				case res.TargetMissing:
					logWarning("%s: target missing (%d keys)", res.Pair.Target, len(res.MissingKeys))
				default:
					if len(res.MissingKeys) > 0 {
						logWarning("%s: %d missing keys: %s", res.Pair.Target, len(res.MissingKeys), previewKeys(res.MissingKeys))
					}
					if len(res.OutdatedKeys) > 0 {
						logWarning("%s: %d outdated keys: %s", res.Pair.Target, len(res.OutdatedKeys), previewKeys(res.OutdatedKeys))
					}
					if res.MtimeOutdated && len(res.MissingKeys) == 0 && len(res.OutdatedKeys) == 0 {
						logWarning("%s: older than its source", res.Pair.Target)
					}
				}
			}
			if !report.Clean() {
				return fmt.Errorf("%d of %d file pairs need translation work", findings, len(report.Results))
			}
			logSuccess("All %d file pairs are up to date", len(report.Results))
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Check a single target locale")

	return cmd
}

func previewKeys(keys []string) string {
	const max = 5
	if len(keys) <= max {
		return strings.Join(keys, ", ")
	}
	return strings.Join(keys[:max], ", ") + ", ..."
}

// ---------------------------------------------------------------------------
// status (read-only: project info + translation stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-locale translation statistics",
		Long: `Show the configured locale set and per-locale translation
progress. Does not modify any files and never calls the provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := newSyncer(cfg, false)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			// Project info header
			fmt.Fprintf(os.Stderr, "\n%sProject%s\n", colorBlue, colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			absRoot, _ := filepath.Abs(cfg.Root)
			fmt.Fprintf(os.Stderr, "  Root:       %s\n", absRoot)
			fmt.Fprintf(os.Stderr, "  Source:     %s\n", cfg.SourceLanguage)
			fmt.Fprintf(os.Stderr, "  Targets:    %s\n", strings.Join(cfg.TargetLocales(), ", "))
			fmt.Fprintf(os.Stderr, "  Provider:   %s\n", cfg.API.Provider)
			fmt.Fprintln(os.Stderr)

			stats, err := s.Stats(ctx, syncer.Options{})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "%sTranslation Statistics%s\n", colorBlue, colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintf(os.Stderr, "\n%-10s %-20s %-8s %-10s %-10s %-8s\n", "Lang", "Language", "Files", "Keys", "Missing", "Percent")
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 68))

			var gaps []syncer.LocaleStats
			for _, st := range stats {
				meta := langmeta.Resolve(cfg.DestinationOf(st.Locale))
				name := meta.Name
				if meta.Flag != "" {
					name = meta.Flag + " " + name
				}
				fmt.Fprintf(os.Stderr, "%-10s %-20s %-8d %-10d %-10d %.0f%%\n", st.Locale, name, st.Files, st.Keys, st.Missing, st.Percent())
				if st.Missing > 0 {
					gaps = append(gaps, st)
				}
			}
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 68))

			if len(gaps) > 0 {
				fmt.Fprintln(os.Stderr)
				logInfo("Translation gaps:")
				for _, st := range gaps {
					fmt.Fprintf(os.Stderr, "  %s: %d missing\n", st.Locale, st.Missing)
				}
			}

			fmt.Fprintln(os.Stderr)
			return nil
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("algebras version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}
