package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/spanview/nounscan/pkg/config"
	"github.com/spanview/nounscan/pkg/log"
	"github.com/spanview/nounscan/pkg/ner"
	"github.com/spanview/nounscan/pkg/replace"
	"github.com/spanview/nounscan/pkg/report"
	"github.com/spanview/nounscan/pkg/textpos"
)

type rootFlags struct {
	configFile    string
	modelDir      string
	find          string
	replaceWith   string
	dryRun        bool
	caseSensitive bool
	backup        bool
	debug         bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "nounscan [flags] <filename>",
		Short: "Report proper noun locations in a text file, or find and replace text",
		Long: `nounscan runs a pretrained entity-recognition model over a UTF-8 text
file and reports each proper noun with its line and column. When both
--find and --replace are given, it instead performs a literal
find-and-replace over the file, with dry-run preview and timestamped
backups.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", config.DefaultPath, "config file path")
	cmd.Flags().StringVar(&flags.modelDir, "model-dir", "", "directory holding the entity model (overrides config)")
	cmd.Flags().StringVar(&flags.find, "find", "", "literal text to search for (requires --replace)")
	cmd.Flags().StringVar(&flags.replaceWith, "replace", "", "literal replacement text (requires --find)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "preview replacements without modifying the file")
	cmd.Flags().BoolVar(&flags.caseSensitive, "case-sensitive", false, "match case exactly (default: case-insensitive)")
	cmd.Flags().BoolVar(&flags.backup, "backup", false, "write a timestamped backup before replacing")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "enable debug logging")

	return cmd
}

// setupLogging configures zerolog based on flags
func setupLogging(debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &l
}

func run(cmd *cobra.Command, flags *rootFlags, filename string) error {
	ctx := cmd.Context()

	// Mode selection happens before anything touches the filesystem.
	findSet := cmd.Flags().Changed("find")
	replaceSet := cmd.Flags().Changed("replace")
	if findSet != replaceSet {
		return errors.New("--find and --replace must be used together")
	}

	level := zerolog.InfoLevel
	if flags.debug {
		level = zerolog.DebugLevel
	}
	logger := log.New(cmd.ErrOrStderr(), level)

	cfg, err := config.Load(ctx, flags.configFile)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	formatter := report.NewTableFormatter(cfg.Output.TextWidth, cfg.Output.ContextWidth)

	if findSet {
		return runReplace(ctx, cmd, flags, cfg, logger, formatter, filename)
	}
	return runDetect(ctx, cmd, flags, cfg, logger, formatter, filename)
}

func runReplace(ctx context.Context, cmd *cobra.Command, flags *rootFlags, cfg *config.Config, logger *log.Logger, formatter report.Formatter, filename string) error {
	logger.Header("Find and Replace Mode")
	logger.Infof("Finding: '%s'", flags.find)
	logger.Infof("Replacing with: '%s'", flags.replaceWith)

	engine := replace.NewEngine(cfg.Protect)
	result, err := engine.Run(ctx, filename, replace.Options{
		Find:          flags.find,
		Replace:       flags.replaceWith,
		CaseSensitive: flags.caseSensitive,
		DryRun:        flags.dryRun,
		Backup:        flags.backup,
	})
	if err != nil {
		return err
	}

	if len(result.Matches) == 0 {
		logger.Warningf("No matches found for '%s'.", flags.find)
		return nil
	}

	if result.BackupPath != "" {
		logger.Infof("Backup created: %s", result.BackupPath)
	}

	verb := "Replaced"
	if flags.dryRun {
		verb = "Would replace"
	}
	logger.Infof("%s %d occurrence(s):", verb, len(result.Matches))

	rows := make([]report.MatchRow, 0, len(result.Matches))
	for _, m := range result.Matches {
		rows = append(rows, report.MatchRow{
			Line:    m.Position.Line,
			Column:  m.Position.Column,
			Context: m.Context,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatMatches(rows))

	if flags.dryRun {
		logger.Info("(Dry run: no changes were made)")
	} else {
		logger.Successf("Successfully replaced %d occurrence(s).", len(result.Matches))
	}
	return nil
}

func runDetect(ctx context.Context, cmd *cobra.Command, flags *rootFlags, cfg *config.Config, logger *log.Logger, formatter report.Formatter, filename string) error {
	logger.Header("Detection Mode: finding proper nouns")

	content, err := readDocument(filename)
	if err != nil {
		return err
	}

	modelDir := flags.modelDir
	if modelDir == "" {
		modelDir = cfg.Model.Dir
	}
	pipeline := ner.NewONNXPipeline(ner.Config{
		ModelDir: modelDir,
		MinScore: cfg.Model.MinScore,
		Labels:   cfg.Model.Labels,
	})

	logger.Info("Loading model...")
	logger.Info("Processing text...")
	entities, err := pipeline.Detect(ctx, content)
	if err != nil {
		if errors.Is(err, ner.ErrUnavailable) {
			return errors.Errorf("entity model not available, set --model-dir or model.dir in config: %w", err)
		}
		return err
	}

	if len(entities) == 0 {
		logger.Warning("No proper nouns found.")
		return nil
	}

	// Document order, regardless of how the pipeline grouped them.
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})

	ix := textpos.NewIndex(content)
	rows := make([]report.EntityRow, 0, len(entities))
	for _, e := range entities {
		pos, err := ix.Position(e.Start)
		if err != nil {
			return err
		}
		rows = append(rows, report.EntityRow{
			Line:   pos.Line,
			Column: pos.Column,
			Text:   e.Text,
			Label:  e.Label,
		})
	}

	logger.Infof("Found %d proper nouns:", len(rows))
	fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatEntities(rows))
	return nil
}

func readDocument(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return "", errors.Errorf("%s: content is not valid UTF-8", path)
	}
	return string(raw), nil
}
