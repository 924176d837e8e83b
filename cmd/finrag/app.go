package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"finrag/internal/agent"
	"finrag/internal/answer"
	"finrag/internal/chunker"
	"finrag/internal/config"
	"finrag/internal/docstore"
	"finrag/internal/domain"
	"finrag/internal/extract"
	"finrag/internal/index"
	"finrag/internal/index/sqlite"
	"finrag/internal/llm"
	"finrag/internal/retriever"
	"finrag/internal/service"
	"finrag/internal/summarizer"
)

// app holds the assembled engine components for one CLI invocation.
type app struct {
	log          *zap.Logger
	docs         *docstore.FS
	store        *index.Store
	persister    *sqlite.Persister
	ingestor     *service.Ingestor
	retriever    *retriever.Retriever
	extractor    *extract.Extractor
	answerer     *answer.Answerer
	orchestrator *agent.Orchestrator
}

// buildApp assembles components from config the way the config file
// names them. Callers must Close the returned app.
func buildApp(cfg *config.AppConfig) (*app, error) {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	gen, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}
	embedder, err := llm.NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	// A missing tokenizer is survivable: the chunker degrades to
	// character windows and logs it.
	var tok chunker.Tokenizer
	if tk, err := chunker.NewTiktokenTokenizer(cfg.Chunker.TokenizerModel); err != nil {
		log.Warn("tokenizer unavailable, chunking will run degraded", zap.Error(err))
	} else {
		tok = tk
	}
	chk, err := chunker.New(cfg.Chunker.ChunkSizeTokens, cfg.Chunker.OverlapTokens, tok, log)
	if err != nil {
		return nil, err
	}

	persister, err := sqlite.NewPersister(cfg.Index.Path)
	if err != nil {
		return nil, err
	}
	store, err := index.NewStore(cfg.Index.CacheSize, persister, log)
	if err != nil {
		persister.Close()
		return nil, err
	}

	docs := docstore.NewFS(cfg.Documents.Root)
	retr := retriever.New(store, embedder, log)

	extractor, err := extract.New(retr, gen, cfg.Retrieval.TopK, cfg.Retrieval.ContextTokenLimit, log)
	if err != nil {
		persister.Close()
		return nil, err
	}
	answerer, err := answer.New(retr, gen, cfg.Retrieval.TopK, cfg.Retrieval.ContextTokenLimit, log)
	if err != nil {
		persister.Close()
		return nil, err
	}
	orchestrator, err := agent.New(gen, retr, extractor, summarizer.New(), cfg.Retrieval.TopK, cfg.Agent.MaxIterations, log)
	if err != nil {
		persister.Close()
		return nil, err
	}

	return &app{
		log:          log,
		docs:         docs,
		store:        store,
		persister:    persister,
		ingestor:     service.NewIngestor(docs, chk, embedder, store, log),
		retriever:    retr,
		extractor:    extractor,
		answerer:     answerer,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) Close() {
	_ = a.log.Sync()
	_ = a.persister.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// entityKey assembles the key from the common --ticker/--filing/--year
// flags.
func entityKey(ticker, filing string, year int) (domain.EntityKey, error) {
	key := domain.EntityKey{Ticker: ticker, FilingType: filing, Year: year}
	if ticker == "" || filing == "" || year == 0 {
		return key, fmt.Errorf("%w: --ticker, --filing and --year are required", domain.ErrInvalidArgument)
	}
	return key, nil
}

// opTimeout bounds one top-level CLI operation.
const opTimeout = 5 * time.Minute
