package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/DigiBugCat/yt-cli/pkg/catalog"
	"github.com/DigiBugCat/yt-cli/pkg/config"
	"github.com/DigiBugCat/yt-cli/pkg/domain"
	"github.com/DigiBugCat/yt-cli/pkg/downloader"
	"github.com/DigiBugCat/yt-cli/pkg/feeds"
	"github.com/DigiBugCat/yt-cli/pkg/index"
	"github.com/DigiBugCat/yt-cli/pkg/storage"
	"github.com/DigiBugCat/yt-cli/pkg/transcriber"
	"github.com/DigiBugCat/yt-cli/pkg/worker"
)

const usage = `yt-cli - download and transcribe videos using yt-dlp and AssemblyAI

Usage: yt-cli <command> [flags] [args]

Commands:
  transcribe <url>...   Download and transcribe videos
  list                  List stored transcripts
  read <id|path>        Print a transcript
  search <query>        Full-text search over transcripts
  stats                 Show index statistics
  reindex               Rebuild the search index from storage
  get <url>             Print the transcript path for a URL
  channel <channel>     List latest videos from a channel
  yt-search <query>     Search the platform for videos
  init                  Store the provider API key
`

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if os.Getenv("YT_DEBUG") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}

	ctx := context.Background()

	var cmdErr error
	switch os.Args[1] {
	case "transcribe":
		cmdErr = runTranscribe(ctx, cfg, os.Args[2:])
	case "list":
		cmdErr = runList(ctx, cfg, os.Args[2:])
	case "read":
		cmdErr = runRead(ctx, cfg, os.Args[2:])
	case "search":
		cmdErr = runSearch(ctx, cfg, os.Args[2:])
	case "stats":
		cmdErr = runStats(ctx, cfg)
	case "reindex":
		cmdErr = runReindex(ctx, cfg)
	case "get":
		cmdErr = runGet(ctx, cfg, os.Args[2:])
	case "channel":
		cmdErr = runChannel(ctx, cfg, os.Args[2:])
	case "yt-search":
		cmdErr = runYtSearch(ctx, cfg, os.Args[2:])
	case "init":
		cmdErr = runInit(cfg, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if cmdErr != nil {
		logrus.Fatalf("%v", cmdErr)
	}
}

// openCatalog wires the real downloader and provider into a catalog.
func openCatalog(ctx context.Context, cfg config.Config) (*catalog.Catalog, error) {
	dl := downloader.NewYtDlp(cfg.DownloadsDir())
	dl.CookiesFile = cfg.CookiesFile
	dl.CookiesFromBrowser = cfg.CookiesFromBrowser

	provider := transcriber.NewAssemblyAI(cfg.APIKey)
	return catalog.New(ctx, cfg, dl, provider, nil)
}

func runTranscribe(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	workers := fs.Int("workers", 1, "Number of videos to transcribe concurrently")
	fs.Parse(args)

	urls := fs.Args()
	if len(urls) == 0 {
		return fmt.Errorf("usage: yt-cli transcribe [-workers N] <url>...")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	if len(urls) == 1 && *workers <= 1 {
		doc, dir, err := cat.Transcribe(ctx, urls[0])
		if err != nil {
			return err
		}
		printTranscribed(doc, dir)
		return nil
	}

	return worker.NewManager(*workers, cat, nil).ProcessURLs(ctx, urls)
}

func printTranscribed(doc *domain.TranscriptDoc, dir string) {
	dur := doc.Transcript.AudioDurationSec
	fmt.Printf("\nTranscription complete!\n\n")
	fmt.Printf("Path: %s\n", dir)
	fmt.Printf("Title: %s\n", doc.Video.Title)
	fmt.Printf("Channel: %s\n", doc.Video.Channel)
	fmt.Printf("Duration: %dm %ds\n", dur/60, dur%60)
	fmt.Printf("Speakers: %d\n", doc.Transcript.SpeakerCount())

	text := doc.Transcript.Text
	if len(text) > 500 {
		text = text[:500] + "..."
	}
	fmt.Printf("\nPreview:\n%s\n", text)
}

func runList(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	platform := fs.String("platform", "", "Filter by platform (youtube, vimeo, ...)")
	channel := fs.String("channel", "", "Filter by channel display name")
	fs.Parse(args)

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.List(storage.ListFilter{Platform: *platform, Channel: *channel})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No transcripts stored yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-12s %-20s %s\n    %s\n", e.Platform, e.Channel, e.Title, e.Path)
	}
	return nil
}

func runRead(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Output structured transcript JSON with timestamps")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: yt-cli read [-json] <video-id|path>")
	}

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	if *asJSON {
		doc, _, err := cat.Read(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	text, err := cat.ReadMarkdown(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func runSearch(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	platform := fs.String("platform", "", "Restrict results to a platform")
	channel := fs.String("channel", "", "Restrict results to a channel")
	limit := fs.Int("n", 20, "Maximum results")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("usage: yt-cli search [-platform P] [-channel C] [-n N] <query>")
	}
	query := fs.Arg(0)

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	results, err := cat.Search(ctx, query, index.SearchFilter{Platform: *platform, Channel: *channel}, *limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s - %s\n", i+1, r.Platform, r.Channel, r.Title)
		if r.Snippet != "" {
			fmt.Printf("   %s\n", r.Snippet)
		}
		fmt.Printf("   %s\n", r.Path)
	}
	return nil
}

func runStats(ctx context.Context, cfg config.Config) error {
	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	st, err := cat.Stats(ctx)
	if err != nil {
		return err
	}
	if st.TotalTranscripts == 0 {
		fmt.Println("No transcripts indexed yet.")
		fmt.Printf("\nData directory: %s\n", cfg.DataDir)
		return nil
	}

	hours := st.TotalDurationSec / 3600
	mins := (st.TotalDurationSec % 3600) / 60
	fmt.Println("Transcript Index Statistics")
	fmt.Println("===========================")
	fmt.Printf("Total transcripts: %d\n", st.TotalTranscripts)
	fmt.Printf("Unique channels:   %d\n", st.UniqueChannels)
	fmt.Printf("Unique platforms:  %d\n", st.UniquePlatforms)
	fmt.Printf("Total duration:    %dh %dm\n", hours, mins)
	fmt.Printf("Total words:       %d\n", st.TotalWords)

	platforms := make([]string, 0, len(st.PlatformCounts))
	for p := range st.PlatformCounts {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	fmt.Println("\nBy platform:")
	for _, p := range platforms {
		fmt.Printf("  %-12s %d\n", p, st.PlatformCounts[p])
	}
	fmt.Printf("\nData directory: %s\n", cfg.DataDir)
	return nil
}

func runReindex(ctx context.Context, cfg config.Config) error {
	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	count, err := cat.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Reindexed %d transcript(s).\n", count)
	return nil
}

func runGet(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: yt-cli get <url>")
	}
	url := args[0]

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	path, err := cat.GetByURL(ctx, url)
	if err == nil {
		fmt.Println(path)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Not stored yet: run the pipeline, then print the path.
	logrus.Info("transcript not found, transcribing")
	_, dir, err := cat.Transcribe(ctx, url)
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}

func runChannel(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("channel", flag.ExitOnError)
	limit := fs.Int("n", 20, "Maximum number of videos to show")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: yt-cli channel [-n N] <url|@handle|channel-id>")
	}

	entries, err := feeds.NewClient().ChannelVideos(ctx, fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func runYtSearch(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("yt-search", flag.ExitOnError)
	limit := fs.Int("n", 10, "Maximum number of results")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("usage: yt-cli yt-search [-n N] <query>")
	}

	dl := downloader.NewYtDlp(cfg.DownloadsDir())
	dl.CookiesFile = cfg.CookiesFile
	dl.CookiesFromBrowser = cfg.CookiesFromBrowser

	entries, err := dl.SearchVideos(ctx, fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func printEntries(entries []domain.PlaylistEntry) {
	if len(entries) == 0 {
		fmt.Println("No videos found.")
		return
	}
	for i, e := range entries {
		fmt.Printf("%d. %s\n", i+1, e.Title)
		if e.Channel != "" {
			fmt.Printf("   Channel: %s\n", e.Channel)
		}
		if e.DurationSec > 0 {
			fmt.Printf("   Duration: %s\n", storage.FormatTimestamp(e.DurationSec*1000))
		}
		fmt.Printf("   %s\n", e.URL)
	}
}

func runInit(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	apiKey := fs.String("k", "", "AssemblyAI API key")
	force := fs.Bool("force", false, "Overwrite existing configuration")
	fs.Parse(args)

	key := *apiKey
	if key == "" && fs.NArg() == 1 {
		key = fs.Arg(0)
	}
	if key == "" {
		return fmt.Errorf("usage: yt-cli init -k <api-key> [-force]")
	}

	if err := cfg.WriteEnvFile(key, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", cfg.EnvFilePath())
	return nil
}
