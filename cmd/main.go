package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/agrisaathi/internal/types"
	"github.com/xhad/agrisaathi/pkg/assembler"
	"github.com/xhad/agrisaathi/pkg/auxiliary"
	cfgPkg "github.com/xhad/agrisaathi/pkg/config"
	"github.com/xhad/agrisaathi/pkg/knowledge"
	"github.com/xhad/agrisaathi/pkg/language"
	"github.com/xhad/agrisaathi/pkg/llm"
	"github.com/xhad/agrisaathi/pkg/logger"
	"github.com/xhad/agrisaathi/pkg/pipeline"
	"github.com/xhad/agrisaathi/pkg/postprocess"
	"github.com/xhad/agrisaathi/pkg/processor"
	"github.com/xhad/agrisaathi/pkg/prompt"
	"github.com/xhad/agrisaathi/pkg/retriever"
	"github.com/xhad/agrisaathi/pkg/scraper"
	"github.com/xhad/agrisaathi/pkg/store"
	"github.com/xhad/agrisaathi/pkg/tokens"
	"github.com/xhad/agrisaathi/server"
)

type Options struct {
	ConfigPath string
	Serve      bool
	SyncURL    string
	Rebuild    bool
	Chunked    bool
	Language   string
	Pincode    string
	District   string
	State      string
}

func main() {
	opts := parseFlags()

	if err := run(opts); err != nil {
		logger.Default().Error("fatal", "err", err)
		os.Exit(1)
	}
}

func parseFlags() Options {
	var opts Options

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.Serve, "serve", false, "Run the HTTP and websocket server")
	flag.StringVar(&opts.SyncURL, "sync-url", "", "Advisory site to scrape into the corpus before starting")
	flag.BoolVar(&opts.Rebuild, "rebuild", false, "Rebuild the vector index from the corpus")
	flag.BoolVar(&opts.Chunked, "chunked", false, "Answer over document sub-batches")
	flag.StringVar(&opts.Language, "lang", "english", "Answer language")
	flag.StringVar(&opts.Pincode, "pincode", "", "Six digit Indian pincode of the farmer")
	flag.StringVar(&opts.District, "district", "", "District, skips the pincode lookup")
	flag.StringVar(&opts.State, "state", "", "State, skips the pincode lookup")
	flag.Parse()

	return opts
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(opts Options) error {
	cfg, err := cfgPkg.LoadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Rebuild {
		cfg.Database.Rebuild = true
	}
	if opts.Chunked {
		cfg.Chunking.Enabled = true
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return fmt.Errorf("invalid config: %w", errors.Join(joined...))
	}

	log := logger.New(&logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.SyncURL != "" {
		if err := syncCorpus(ctx, cfg, opts.SyncURL, log); err != nil {
			return err
		}
		// freshly scraped records must reach the index
		cfg.Database.Rebuild = true
	}

	answers, closeStore, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := server.NewWSServer(server.Config{
		Pipeline: answers,
		Resolver: auxiliary.NewPincodeResolver(cfg.Location.BaseURL, cfg.Location.Timeout),
		Weather: auxiliary.NewWeatherClient(auxiliary.WeatherConfig{
			BaseURL:  cfg.Weather.BaseURL,
			APIKey:   cfg.Weather.APIKey,
			Days:     cfg.Weather.Days,
			Timeout:  cfg.Weather.Timeout,
			CacheTTL: cfg.Weather.CacheTTL,
			CacheMax: cfg.Weather.CacheMax,
			Logger:   log,
		}),
		Market:         auxiliary.NewMarketFile(cfg.Market.File, log),
		ChunkSize:      cfg.Chunking.ChunkSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if opts.Serve {
		return srv.ListenAndServe(ctx, ":"+cfg.Server.Port)
	}

	opts.Chunked = cfg.Chunking.Enabled
	return chat(ctx, srv, opts)
}

// buildPipeline wires the answer pipeline from cfg. The returned func
// releases the vector store connection.
func buildPipeline(ctx context.Context, cfg *cfgPkg.Config, log logger.Logger) (*pipeline.Pipeline, func(), error) {
	closeStore := func() {}

	counter := tokens.New(cfg.Budget.Encoding, log)
	asm := assembler.NewWithConfig(assembler.AssemblerConfig{
		MaxTokens:      cfg.Budget.MaxTokens,
		ReducedTokens:  cfg.Budget.ReducedTokens,
		HardCeiling:    cfg.Budget.HardCeiling,
		PromptOverhead: cfg.Budget.PromptOverhead,
		MinTailTokens:  cfg.Budget.MinTailTokens,
		Counter:        counter,
		Logger:         log,
	})
	languages := language.NewRegistry(cfg.Languages, log)

	generator, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		return nil, closeStore, fmt.Errorf("failed to initialize %s generator: %w", cfg.LLM.Provider, err)
	}

	embedder, err := llm.NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, closeStore, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var docStore types.DocumentStore
	if cfg.Database.URL != "" {
		vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
			Embedder:   embedder,
			Logger:     log,
		})
		if err != nil {
			return nil, closeStore, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		docStore = vectorStore
		closeStore = vectorStore.Close
	} else {
		log.Warn("no database configured, indexing the corpus in memory")
		memStore, err := store.NewMemoryStore(embedder)
		if err != nil {
			return nil, closeStore, fmt.Errorf("failed to initialize memory store: %w", err)
		}
		docStore = memStore
	}

	builder := knowledge.NewBuilder(knowledge.BuilderConfig{
		Loader:  knowledge.NewLoader(cfg.Corpus.Dir, log),
		Store:   docStore,
		Rebuild: cfg.Database.Rebuild,
		Logger:  log,
	})

	index := buildIndex(ctx, builder, cfg.Corpus.Lazy, log)

	p, err := pipeline.NewWithConfig(pipeline.PipelineConfig{
		Retriever: retriever.NewWithConfig(retriever.RetrieverConfig{Index: index, K: cfg.Retrieval.K, Logger: log}),
		Assembler: asm,
		Prompts:   prompt.NewBuilder(languages),
		Cleaner:   postprocess.NewCleaner(languages, log),
		Generator: generator,
		ChunkSize: cfg.Chunking.ChunkSize,
		MaxChunks: cfg.Chunking.MaxChunks,
		Logger:    log,
	})
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}
	return p, closeStore, nil
}

func processorConfig(c cfgPkg.ProcessorConfig) processor.ProcessorConfig {
	return processor.ProcessorConfig{
		ChunkSize:       c.ChunkSize,
		ChunkOverlap:    c.ChunkOverlap,
		RemoveStopwords: c.RemoveStopwords,
		CustomStopwords: c.CustomStopwords,
		Lowercase:       c.Lowercase,
	}
}

// buildIndex returns nil when the build fails; the retriever then answers
// with no documents and the pipeline degrades instead of the process exiting.
func buildIndex(ctx context.Context, builder *knowledge.Builder, lazy bool, log logger.Logger) types.Index {
	if lazy {
		return knowledge.NewLazy(builder)
	}

	spinner := getSpinner(" Building knowledge index...")
	index, err := builder.Build(ctx)
	spinner.Finish()
	if err != nil {
		log.Error("knowledge index unavailable, answering without retrieval", "err", err)
		return nil
	}
	return index
}

// syncCorpus scrapes an advisory site and writes its chunks into the corpus
// directory as scraped_<host>.json.
func syncCorpus(ctx context.Context, cfg *cfgPkg.Config, startURL string, log logger.Logger) error {
	if !strings.HasPrefix(startURL, "http") {
		startURL = "https://" + startURL
	}
	parsed, err := url.Parse(startURL)
	if err != nil {
		return fmt.Errorf("invalid sync url: %w", err)
	}

	var scrapeCount int32
	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:           startURL,
		MaxDepth:          cfg.Scraper.MaxDepth,
		RateLimit:         cfg.Scraper.RateLimit,
		IgnorePatterns:    cfg.Scraper.IgnorePatterns,
		AllowedExtensions: cfg.Scraper.AllowedExtensions,
		Logger:            log,
		OnProgress: func(string) {
			atomic.AddInt32(&scrapeCount, 1)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	color.Blue("\nSyncing advisories from %s\n", startURL)
	scrapingBar := getProgressBar(-1, " Scraping advisories...")
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		startTime := time.Now()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				count := atomic.LoadInt32(&scrapeCount)
				scrapingBar.Set(int(count))
				if count > 0 {
					rate := float64(count) / time.Since(startTime).Seconds()
					scrapingBar.Describe(color.BlueString(" Scraping advisories (%.1f pages/sec)", rate))
				}
			}
		}
	}()

	pages, err := s.Scrape(ctx, startURL)
	close(done)
	scrapingBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to scrape %s: %w", startURL, err)
	}
	color.Green("\n✓ Scraped %d pages\n", len(pages))

	chunker := processor.NewWithConfig(processorConfig(cfg.Processor))
	processed, err := chunker.Process(pages)
	if err != nil {
		return fmt.Errorf("failed to process pages: %w", err)
	}

	path := filepath.Join(cfg.Corpus.Dir, "scraped_"+strings.ReplaceAll(parsed.Hostname(), ".", "_")+".json")
	n, err := processor.WriteCorpus(path, processed)
	if err != nil {
		return err
	}
	color.Green("✓ Wrote %d chunks to %s\n", n, path)
	return nil
}

func chat(ctx context.Context, srv *server.WSServer, opts Options) error {
	color.Cyan("\nAsk AgriSaathi (type 'exit' to quit, '/lang <name>' or '/pincode <code>' to switch)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case strings.ToLower(query) == "exit":
			return nil
		case strings.HasPrefix(query, "/lang "):
			opts.Language = strings.TrimSpace(strings.TrimPrefix(query, "/lang "))
			color.Blue("Answer language set to %s", opts.Language)
			continue
		case strings.HasPrefix(query, "/pincode "):
			opts.Pincode = strings.TrimSpace(strings.TrimPrefix(query, "/pincode "))
			opts.District, opts.State = "", ""
			color.Blue("Pincode set to %s", opts.Pincode)
			continue
		}

		spinner := getSpinner(" Thinking...")
		resp, err := srv.Answer(ctx, server.QueryRequest{
			Query:    query,
			Language: opts.Language,
			Pincode:  opts.Pincode,
			District: opts.District,
			State:    opts.State,
			Chunked:  opts.Chunked,
		})
		spinner.Finish()

		if err != nil {
			color.Red("\nError: %v\n", err)
			continue
		}

		assistantPrompt("\nAssistant: %s\n", resp.Text)
		if len(resp.Sources) > 0 {
			color.HiBlack("confidence %.2f, sources: %s", resp.Confidence, strings.Join(resp.Sources, ", "))
		} else {
			color.HiBlack("confidence %.2f", resp.Confidence)
		}

		if ctx.Err() != nil {
			return nil
		}
	}

	return scanner.Err()
}
