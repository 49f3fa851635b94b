package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/learnbot"
	"github.com/poiesic/learnbot/config"
	"github.com/poiesic/learnbot/core"
	"github.com/poiesic/learnbot/knowledge"
	"github.com/poiesic/learnbot/pipeline"
	"github.com/poiesic/learnbot/reindex"
	"github.com/poiesic/learnbot/session"
	"github.com/urfave/cli/v2"
)

// openAssistant builds the Assistant for a command. Tests replace it.
var openAssistant = openConfiguredAssistant

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "learnbot",
		Usage: "Conversational assistant that learns facts and preferences",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (default: ./learnbot.yaml or ~/.config/learnbot/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Path to BadgerDB database directory (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Start an interactive conversation",
				Action: chatCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:    "temperature",
						Aliases: []string{"t"},
						Usage:   "Response temperature between 0.0 and 1.0 (default from config)",
						Value:   -1,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Process a single message and print the JSON result",
				ArgsUsage: "<message>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "temperature",
						Usage: "Response temperature (default from config)",
						Value: -1,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the knowledge store",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print candidates and verbatim hits as the search runs",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load facts from a file, one per line, without validation",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "File with one fact per line; blank lines and # comments are skipped",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent writers",
						Value: 4,
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Show recently processed messages",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of turns to show",
						Value:   20,
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Show every turn of one session instead",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed stored fragments with the configured embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of fragments to embed per request",
						Value: reindex.DefaultConfig().BatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N fragments",
						Value: reindex.DefaultConfig().ReportEvery,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts per batch",
						Value: reindex.DefaultConfig().MaxAttempts - 1,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: reindex.DefaultConfig().RetryDelay,
					},
					&cli.BoolFlag{
						Name:  "only-stale",
						Usage: "Only re-embed fragments produced by a different model",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		var path string
		cfg, path, err = config.LoadDefault()
		slog.Debug("loaded config", "path", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if store := c.String("store"); store != "" {
		cfg.Store.Path = store
	}
	return cfg, nil
}

func openConfiguredAssistant(c *cli.Context) (*learnbot.Assistant, *config.AppConfig, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	aiConfig, err := cfg.ToAIConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	bot, err := learnbot.Open(cfg.Store.Path,
		learnbot.WithAIConfig(aiConfig),
		learnbot.WithCacheTTL(cfg.CacheTTL()),
		learnbot.WithStoreOptions(knowledge.WithMinSimilarity(cfg.Store.MinSimilarity)),
		learnbot.WithPipelineOptions(
			pipeline.WithContextSize(cfg.Pipeline.ContextSize),
			pipeline.WithDefaultTemperature(cfg.LLM.Temperature),
		),
		learnbot.WithRecorderOptions(session.WithPoolSize(cfg.Session.RecorderPoolSize)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open assistant: %w", err)
	}
	return bot, cfg, nil
}

func chatCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	bot, cfg, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer bot.Close()

	temperature := cfg.Session.Temperature
	if t := c.Float64("temperature"); t >= 0 {
		temperature = t
	}
	chat, err := bot.NewSession(session.WithTemperature(temperature))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, "Share a fact, ask a question, or tell me how you like your answers.")
	fmt.Fprintln(out, "Commands: /stats, /prefs, /temp <0.0-1.0>, /reset, /quit")

	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runChatCommand(out, chat, line); quit {
				break
			}
			continue
		}

		result := chat.Send(ctx, line)
		fmt.Fprintln(out, result.Response)
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	printStats(out, chat.Stats())
	return nil
}

// runChatCommand handles a REPL slash command and reports whether to quit.
func runChatCommand(out io.Writer, chat *session.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/stats":
		printStats(out, chat.Stats())
	case "/prefs":
		printPreferences(out, chat.Preferences())
	case "/reset":
		chat.Reset()
		fmt.Fprintln(out, "Conversation cleared.")
	case "/temp":
		if len(fields) != 2 {
			fmt.Fprintf(out, "Temperature: %.1f\n", chat.Temperature())
			return false
		}
		t, err := strconv.ParseFloat(fields[1], 64)
		if err == nil {
			err = chat.SetTemperature(t)
		}
		if err != nil {
			fmt.Fprintf(out, "Invalid temperature: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Temperature set to %.1f\n", t)
	default:
		fmt.Fprintf(out, "Unknown command %s\n", fields[0])
	}
	return false
}

func printStats(out io.Writer, stats session.Stats) {
	fmt.Fprintf(out, "Messages: %d  Facts learned: %d  Errors: %d\n",
		stats.TotalMessages, stats.FactsLearned, stats.Errors)
	for _, intent := range core.Intents {
		fmt.Fprintf(out, "  %-10s %d\n", intent, stats.ByIntent[intent])
	}
}

func printPreferences(out io.Writer, prefs core.Preferences) {
	for _, key := range core.PreferenceKeys {
		fmt.Fprintf(out, "  %-10s %s\n", key, prefs[key])
	}
}

func askCommand(c *cli.Context) error {
	message := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("a message is required")
	}

	bot, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer bot.Close()

	var opts []pipeline.TurnOption
	if t := c.Float64("temperature"); t >= 0 {
		opts = append(opts, pipeline.WithTemperature(t))
	}
	result := bot.Process(c.Context, message, opts...)

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Failed() {
		return errors.New("message processing failed")
	}
	return nil
}

// verboseMonitor prints each step of a similarity search.
type verboseMonitor struct {
	out io.Writer
}

var _ knowledge.SearchMonitor = (*verboseMonitor)(nil)

func (m *verboseMonitor) Start(query string, k int) {
	fmt.Fprintf(m.out, "Searching for %q (k=%d)\n", query, k)
}

func (m *verboseMonitor) AfterSemanticSearch(candidates []*core.SimilarityMatch) {
	fmt.Fprintf(m.out, "Semantic search returned %d candidates\n", len(candidates))
}

func (m *verboseMonitor) VerbatimHit(fragment *core.Fragment) {
	fmt.Fprintf(m.out, "Verbatim match: %d\n", fragment.Id)
}

func (m *verboseMonitor) Finish(results []*core.SimilarityMatch) {
	fmt.Fprintf(m.out, "Keeping %d results\n", len(results))
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}
	limit := c.Int("limit")
	if limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}

	bot, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer bot.Close()

	var monitor knowledge.SearchMonitor
	if c.Bool("verbose") {
		monitor = &verboseMonitor{out: c.App.Writer}
	}
	results, err := bot.Store().SearchWithMonitor(c.Context, query, limit, monitor)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		kind := hit.Fragment.Metadata[core.MetadataType]
		fmt.Fprintf(c.App.Writer, "%d: '%s' (%d, %s)[%0.3f]\n", i, hit.Fragment.Content, hit.Fragment.Id, kind, hit.Score)
	}
	return nil
}

// readFacts returns the non-blank, non-comment lines of r.
func readFacts(r io.Reader) ([]string, error) {
	var facts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		facts = append(facts, line)
	}
	return facts, scanner.Err()
}

func seedCommand(c *cli.Context) error {
	f, err := os.Open(c.String("file"))
	if err != nil {
		return err
	}
	facts, err := readFacts(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading facts: %w", err)
	}
	if len(facts) == 0 {
		fmt.Fprintln(c.App.Writer, "No facts to load")
		return nil
	}

	bot, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer bot.Close()

	pool, err := ants.NewPool(max(c.Int("workers"), 1))
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, fact := range facts {
		doc := core.Document{
			Content:  fact,
			Metadata: map[string]string{core.MetadataType: string(core.IntentFact)},
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := bot.Store().AddDocuments(c.Context, doc); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%q: %w", doc.Content, err))
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	fmt.Fprintf(c.App.Writer, "Loaded %d of %d facts\n", len(facts)-len(errs), len(facts))
	return errors.Join(errs...)
}

func historyCommand(c *cli.Context) error {
	bot, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer bot.Close()

	var turns []*core.Turn
	if id := c.String("session"); id != "" {
		turns, err = bot.Transcript().GetTurnsBySession(c.Context, id)
	} else {
		turns, err = bot.Transcript().GetRecentTurns(c.Context, c.Int("limit"))
	}
	if err != nil {
		return err
	}
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})

	out := c.App.Writer
	for _, turn := range turns {
		fmt.Fprintf(out, "[%s] %s (%s)\n", turn.Timestamp.Local().Format("2006-01-02 15:04:05"), turn.SessionID, turn.Intent)
		fmt.Fprintf(out, "  > %s\n", turn.Input)
		if turn.Error != "" {
			fmt.Fprintf(out, "  ! %s\n", turn.Error)
		}
		fmt.Fprintf(out, "  %s\n", turn.Response)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	bot, _, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer bot.Close()

	reindexer, err := bot.NewReindexer(&reindex.Config{
		BatchSize:   c.Int("batch-size"),
		ReportEvery: c.Int("report-interval"),
		MaxAttempts: c.Int("max-retries") + 1,
		RetryDelay:  c.Duration("retry-delay"),
		OnlyStale:   c.Bool("only-stale"),
	}, c.App.Writer)
	if err != nil {
		return err
	}

	summary, err := reindexer.Run(ctx)
	if err != nil {
		return fmt.Errorf("reindex failed after %d fragments: %w", summary.Reindexed, err)
	}
	return nil
}
