package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"music-sync-srv/internal/config"
	"music-sync-srv/internal/models"
	"music-sync-srv/internal/parser"
	"music-sync-srv/internal/report"
)

// Flags that override configuration keys.
var flagKeys = map[string]string{
	"backend":    "REMOTE_BACKEND",
	"mode":       "MATCHING_MODE",
	"threshold":  "MATCH_THRESHOLD",
	"ledger":     "LEDGER_PATH",
	"report-dir": "REPORT_DIR",
	"port":       "PORT",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmdRoot().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		stop()
		os.Exit(1)
	}
}

func cmdRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "music-sync",
		Short: "Match a local music library against a streaming catalog and sync its playlists",
	}
	cmd.PersistentFlags().String("env-file", "", "Path to a .env file (default ./.env when present)")
	cmd.PersistentFlags().String("backend", "", "Remote backend: spotify or dab")
	cmd.PersistentFlags().String("mode", "", "Matching mode: lenient or strict")
	cmd.PersistentFlags().Float64("threshold", 0, "Acceptance threshold, overrides the mode")
	cmd.PersistentFlags().String("ledger", "", "Path to the ledger database")
	cmd.PersistentFlags().String("report-dir", "", "Directory for per-playlist CSV reports")

	cmd.AddCommand(cmdSync(), cmdServe())
	return cmd
}

// loadConfig layers the flags the user actually set over env and .env.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.LoadWithOverrides(envFile, overrides)
}

func cmdSync() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Match the local playlists and add accepted tracks remotely",
		Long: "Reads playlists from a library export (CSV or Apple Music XML), a YouTube " +
			"playlist or a Spotify URL, matches every track against the remote catalog " +
			"and adds confident matches that were not synced before.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				flags      = cmd.Flags()
				library, _ = flags.GetString("library")
				format, _  = flags.GetString("format")
				ytURL, _   = flags.GetString("youtube")
				spURL, _   = flags.GetString("spotify")
				include, _ = flags.GetStringArray("playlist")
				exclude, _ = flags.GetStringArray("exclude")
				dryRun, _  = flags.GetBool("dry-run")
				verbose, _ = flags.GetBool("verbose")
			)

			sources := 0
			for _, s := range []string{library, ytURL, spURL} {
				if s != "" {
					sources++
				}
			}
			if sources != 1 {
				return errors.New("exactly one of --library, --youtube or --spotify is required")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			var playlists []models.Playlist
			switch {
			case library != "":
				playlists, err = readLibrary(library, format)
			case ytURL != "":
				playlists, err = parser.ParseYouTube(ctx, ytURL)
			default:
				if eng.spotifySource == nil {
					return errors.New("--spotify needs SPOTIFY_ID and SPOTIFY_SECRET")
				}
				playlists, err = eng.spotifySource.Parse(ctx, spURL)
			}
			if err != nil {
				return err
			}

			playlists = parser.Filter(playlists, include, exclude)
			if len(playlists) == 0 {
				return errors.New("no playlists left to sync")
			}

			reports, err := eng.run(ctx, playlists, runOptions{DryRun: dryRun, Verbose: verbose})
			printSummary(cmd.OutOrStdout(), reports, cfg.Storage.ReportDir, dryRun)
			return err
		},
	}
	cmd.Flags().StringP("library", "l", "", "Library export file")
	cmd.Flags().StringP("format", "f", "", "Library format: csv or applemusic (guessed from the extension)")
	cmd.Flags().String("youtube", "", "YouTube playlist URL to use as the library")
	cmd.Flags().String("spotify", "", "Spotify playlist, album or track URL to use as the library")
	cmd.Flags().StringArrayP("playlist", "p", []string{}, "Only sync this playlist (repeatable)")
	cmd.Flags().StringArrayP("exclude", "x", []string{}, "Skip this playlist (repeatable)")
	cmd.Flags().BoolP("dry-run", "n", false, "Match and report without adding anything")
	cmd.Flags().BoolP("verbose", "v", false, "Log every decision")
	return cmd
}

func cmdServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			eng, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			log.Printf("Music sync engine listening on :%s", cfg.Port)
			return serve(cmd.Context(), ":"+cfg.Port, newServer(eng))
		},
	}
	cmd.Flags().String("port", "", "Listen port (default 8080)")
	return cmd
}

func readLibrary(path, format string) ([]models.Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if format == "" {
		format = "csv"
		if strings.EqualFold(filepath.Ext(path), ".xml") {
			format = "applemusic"
		}
	}
	switch strings.ToLower(format) {
	case "csv":
		return parser.ParseCSV(f, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	case "applemusic":
		return parser.ParseAppleMusic(f)
	default:
		return nil, fmt.Errorf("unknown library format %q", format)
	}
}

func printSummary(w io.Writer, reports []models.Report, reportDir string, dryRun bool) {
	var (
		bold   = color.New(color.Bold).SprintFunc()
		green  = color.New(color.FgGreen).SprintFunc()
		cyan   = color.New(color.FgCyan).SprintFunc()
		yellow = color.New(color.FgYellow).SprintFunc()
		red    = color.New(color.FgRed).SprintFunc()
	)

	if dryRun {
		fmt.Fprintln(w, yellow("dry run: nothing was added"))
	}
	for _, r := range reports {
		counts := r.Counts()
		unwritten := lo.CountBy(r.Rows, func(row models.ReportRow) bool { return row.WriteError != "" })
		fmt.Fprintf(w, "%s  %s added  %s already synced  %s rejected  %s not found\n",
			bold(r.PlaylistName),
			green(counts[models.DecisionAccepted]-unwritten),
			cyan(counts[models.DecisionAlreadySynced]),
			yellow(counts[models.DecisionRejected]),
			red(counts[models.DecisionNoCandidates]))
		if unwritten > 0 {
			fmt.Fprintf(w, "  %s accepted but not written, retried on the next run\n", red(unwritten))
		}
		if reportDir != "" {
			fmt.Fprintf(w, "  report: %s\n", filepath.Join(reportDir, report.FileName(r)))
		}
	}
}
