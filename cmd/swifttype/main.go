// Package main provides the CLI entrypoint for swifttype.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/swifttype/internal/config"
	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/texts"
	"github.com/verte-zerg/swifttype/internal/tui"
)

const (
	defaultDuration    = model.Duration60
	defaultSource      = texts.SourcePassages
	defaultWords       = 120
	defaultCaps        = 0.1
	defaultPunct       = 0.1
	defaultCurveWindow = 20
)

const defaultPunctSet = ".,!?;:"

var (
	serverURL string

	practiceDuration     int
	practiceStartOnInput bool
	practiceSource       string
	practiceWords        int
	practiceCaps         float64
	practicePunct        float64
	practicePunctSet     string
	practiceWordList     string
	practiceOffline      bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "swifttype",
		Short:         "Timed typing tests with a shared leaderboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "swifttype server URL (default: local scores only)")

	rootCmd.Flags().IntVar(&practiceDuration, "duration", defaultDuration, "test length in seconds (30 or 60)")
	rootCmd.Flags().BoolVar(&practiceStartOnInput, "start-on-input", true, "start the timer on the first keystroke")
	rootCmd.Flags().StringVar(&practiceSource, "source", defaultSource, "text source: passages or words")
	rootCmd.Flags().IntVar(&practiceWords, "words", defaultWords, "words per generated text")
	rootCmd.Flags().Float64Var(&practiceCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	rootCmd.Flags().Float64Var(&practicePunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	rootCmd.Flags().StringVar(&practicePunctSet, "punct-set", defaultPunctSet, "punctuation set")
	rootCmd.Flags().StringVar(&practiceWordList, "word-list", "", "custom word list file for the words source")
	rootCmd.Flags().BoolVar(&practiceOffline, "offline", false, "save scores locally even when logged in")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())

	return rootCmd
}

func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyIntConfig(cmd, "duration", &practiceDuration, fileCfg.Practice.Duration)
	applyBoolConfig(cmd, "start-on-input", &practiceStartOnInput, fileCfg.Practice.StartOnInput)
	applyStringConfig(cmd, "source", &practiceSource, fileCfg.Practice.Source)
	applyIntConfig(cmd, "words", &practiceWords, fileCfg.Practice.Words)
	applyFloatConfig(cmd, "caps", &practiceCaps, fileCfg.Practice.CapsPct)
	applyFloatConfig(cmd, "punct", &practicePunct, fileCfg.Practice.PunctPct)
	applyStringConfig(cmd, "punct-set", &practicePunctSet, fileCfg.Practice.PunctSet)
	applyStringConfig(cmd, "word-list", &practiceWordList, fileCfg.Practice.WordList)
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Client.Server)

	cfg := model.Config{
		DurationSec:  practiceDuration,
		StartOnInput: practiceStartOnInput,
		Source:       practiceSource,
		Words:        practiceWords,
		CapsPct:      practiceCaps,
		PunctPct:     practicePunct,
		PunctSet:     practicePunctSet,
		WordListPath: practiceWordList,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	provider, err := texts.NewProvider(texts.Options{
		Source:       cfg.Source,
		Words:        cfg.Words,
		CapsPct:      cfg.CapsPct,
		PunctPct:     cfg.PunctPct,
		PunctSet:     cfg.PunctSet,
		WordListPath: cfg.WordListPath,
	})
	if err != nil {
		return fmt.Errorf("failed to load texts: %w", err)
	}

	be, err := openPracticeBackend(provider, practiceOffline)
	if err != nil {
		return err
	}
	defer be.close()

	m := tui.NewModel(tui.Options{
		Config:    cfg,
		Texts:     be.texts,
		Submitter: be.submitter,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringsConfig(cmd *cobra.Command, name string, target, value *[]string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), (*value)...)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# swifttype configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# duration = %d            # Test length in seconds (30 or 60)
# start-on-input = true    # Start the timer on the first keystroke
# source = %q       # Text source: passages or words
# words = %d               # Words per generated text
# caps = %.2f              # Probability of capitalized first letter (0-1)
# punct = %.2f             # Punctuation probability per word (0-1)
# punct-set = %q       # Punctuation set
# word-list = ""           # Custom word list for the words source

[client]
# server = "http://localhost:5000"

[server]
# addr = %q
# allowed-origins = ["http://localhost:3000"]
# rate-limit = %.1f        # Requests per second per client IP (0 disables)
# rate-burst = %d
# jwt-secret = ""          # Or set %s
# token-ttl = "168h"
# metrics = true

[database]
# driver = "sqlite"        # sqlite or mongo
# path = ""                # SQLite file (default under XDG data home)
# uri = "mongodb://localhost:27017"   # Or set %s
# name = %q

[log]
# level = "info"
# format = "text"          # text or json
`,
		defaultDuration,
		defaultSource,
		defaultWords,
		defaultCaps,
		defaultPunct,
		defaultPunctSet,
		defaultAddr,
		defaultRateLimit,
		defaultRateBurst,
		config.EnvJWTSecret,
		config.EnvDatabaseURI,
		defaultDatabaseName,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.DurationSec != model.Duration30 && cfg.DurationSec != model.Duration60 {
		return fmt.Errorf("--duration must be %d or %d", model.Duration30, model.Duration60)
	}
	switch cfg.Source {
	case texts.SourcePassages, texts.SourceWords:
	default:
		return fmt.Errorf("--source must be %q or %q", texts.SourcePassages, texts.SourceWords)
	}
	if cfg.Words <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if cfg.CapsPct < 0 || cfg.CapsPct > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if cfg.PunctPct < 0 || cfg.PunctPct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if cfg.PunctPct > 0 && cfg.PunctSet == "" {
		return fmt.Errorf("--punct-set must not be empty")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
