package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/teamdigest/pkg/config"
	"github.com/umputun/teamdigest/pkg/digest"
	"github.com/umputun/teamdigest/pkg/feed"
	"github.com/umputun/teamdigest/pkg/llm"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"settings file (yaml), defaults only when empty"`
	Team   string `short:"t" long:"team" description:"summarize only this team"`
	Days   *int   `short:"d" long:"days" description:"lookback window in days (default 60)"`

	Feeds    string `long:"feeds" env:"FEEDS_FILE" description:"team to feed urls mapping"`
	Prompt   string `long:"prompt" env:"PROMPT_FILE" description:"prompt template file"`
	Cache    string `long:"cache" env:"CACHE_FILE" description:"feed cache file"`
	UseCache bool   `long:"use-cache" env:"USE_MOCK_FEED_DATA" description:"read feeds from cache instead of fetching"`

	Provider string `long:"provider" env:"LLM_PROVIDER" description:"summarization provider (gemini or openai)"`
	Endpoint string `long:"endpoint" env:"LLM_ENDPOINT" description:"provider api base url"`
	APIKey   string `long:"api-key" env:"LLM_API_KEY" description:"provider api key"`
	Model    string `long:"model" env:"LLM_MODEL" description:"model name"`
	Workers  int    `long:"workers" description:"max concurrent summarization requests"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug, opts.APIKey)
	log.Printf("[DEBUG] starting teamdigest version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[WARN] termination signal received")
		cancel()
	}()

	err := run(ctx, opts, os.Stdout)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run loads configuration, fetches feeds, summarizes them and writes the report to out.
// Config, prompt and credential problems are returned as errors, summarization failures are only logged.
func run(ctx context.Context, opts Opts, out io.Writer) error {
	cfg, err := config.Load(opts.Config, opts.overrides()...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.LLM.APIKey != "" && cfg.LLM.APIKey != opts.APIKey {
		// key came from the settings file or environment, hide it from logs too
		setupLog(opts.Debug, cfg.LLM.APIKey)
	}

	teams, err := config.LoadTeams(cfg.Files.Feeds)
	if err != nil {
		return fmt.Errorf("failed to load teams: %w", err)
	}
	prompt, err := config.LoadPrompt(cfg.Files.Prompt)
	if err != nil {
		return fmt.Errorf("failed to load prompt: %w", err)
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
	}

	reader := feed.NewReader(feed.ReaderConfig{
		Parser: feed.NewParser(feed.ParserConfig{
			Timeout:    cfg.Feed.Timeout,
			UserAgent:  cfg.Feed.UserAgent,
			Retries:    cfg.Feed.Retries,
			RetryDelay: cfg.Feed.RetryDelay,
		}),
		Cache:     feed.NewCache(cfg.Files.Cache),
		StripHTML: cfg.StripHTMLEnabled(),
	})
	lgr.Printf("[INFO] loaded %d teams (%s), lookback %d days", len(teams), strings.Join(teams.Names(), ", "), cfg.LookbackDays())
	byTeam := reader.FetchOrLoad(ctx, teams, cfg.LookbackDays(), opts.UseCache)
	lgr.Printf("[INFO] %d entries in window", byTeam.EntriesCount())
	if opts.Debug {
		dumpFeeds(byTeam)
	}

	summarizer := llm.NewSummarizer(client, llm.SummarizerConfig{
		MaxRetries:        cfg.Pipeline.MaxRetries,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	scheduler := digest.NewScheduler(summarizer, digest.Config{
		BatchSize:      cfg.Pipeline.BatchSize,
		MaxWorkers:     cfg.Pipeline.MaxWorkers,
		TeamFilter:     opts.Team,
		KeepChunkOrder: cfg.Pipeline.KeepChunkOrder,
	})
	responses := scheduler.Dispatch(ctx, byTeam, prompt)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}

	if _, err := io.WriteString(out, digest.Render(responses)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// overrides turns non-empty CLI options into config options
func (o Opts) overrides() []config.Option {
	var res []config.Option
	set := func(val string, fn func(c *config.Config, v string)) {
		if val != "" {
			res = append(res, func(c *config.Config) { fn(c, val) })
		}
	}
	set(o.Feeds, func(c *config.Config, v string) { c.Files.Feeds = v })
	set(o.Prompt, func(c *config.Config, v string) { c.Files.Prompt = v })
	set(o.Cache, func(c *config.Config, v string) { c.Files.Cache = v })
	set(o.Provider, func(c *config.Config, v string) { c.LLM.Provider = v })
	set(o.Endpoint, func(c *config.Config, v string) { c.LLM.Endpoint = v })
	set(o.APIKey, func(c *config.Config, v string) { c.LLM.APIKey = v })
	set(o.Model, func(c *config.Config, v string) { c.LLM.Model = v })

	if o.Days != nil {
		days := *o.Days
		res = append(res, func(c *config.Config) { c.Pipeline.Days = &days })
	}
	if o.Workers > 0 {
		res = append(res, func(c *config.Config) { c.Pipeline.MaxWorkers = o.Workers })
	}
	return res
}

func dumpFeeds(byTeam feed.ByTeam) {
	data, err := json.MarshalIndent(byTeam, "", "  ")
	if err != nil {
		lgr.Printf("[WARN] can't dump feeds data: %v", err)
		return
	}
	lgr.Printf("[DEBUG] fetched feeds data: %s", data)
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.CallerFile, lgr.CallerFunc)
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
