package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarlab/research-assistant/internal/config"
	"github.com/scholarlab/research-assistant/internal/core/ports"
	"github.com/scholarlab/research-assistant/internal/core/usecase"
	"github.com/scholarlab/research-assistant/internal/infrastructure/chunking"
	pdfextractor "github.com/scholarlab/research-assistant/internal/infrastructure/extractor/pdf"
	"github.com/scholarlab/research-assistant/internal/infrastructure/llm/upstage"
	natsqueue "github.com/scholarlab/research-assistant/internal/infrastructure/queue/nats"
	"github.com/scholarlab/research-assistant/internal/infrastructure/repository/postgres"
	"github.com/scholarlab/research-assistant/internal/infrastructure/resilience"
	"github.com/scholarlab/research-assistant/internal/infrastructure/search/arxiv"
	"github.com/scholarlab/research-assistant/internal/infrastructure/storage/localfs"
	"github.com/scholarlab/research-assistant/internal/infrastructure/vector/chroma"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC    ports.DocumentIngestor
	ProcessUC   ports.DocumentProcessor
	AskUC       ports.QuestionService
	DiscoveryUC ports.DiscoveryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		Executor: resilience.NewExecutor(resilience.DefaultPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llm := upstage.New(upstage.Options{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		ChatModel:         cfg.LLMChatModel,
		EmbedModel:        cfg.LLMEmbedModel,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
		RequestTimeout:    time.Duration(cfg.LLMRequestTimeoutSeconds) * time.Second,
		Policy:            resilience.DefaultPolicy(),
	})
	embedder := upstage.NewEmbedder(llm, time.Duration(cfg.EmbeddingCacheTTLSeconds)*time.Second)

	vectorIndex := chroma.New(cfg.ChromaURL, cfg.ChromaCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := pdfextractor.NewExtractor(storage)
	searcher := arxiv.New("")

	retriever := usecase.NewChunkRetriever(embedder, vectorIndex, repo, cfg.RetrievalOversample)
	gate := selectGate(cfg, llm)
	controller := usecase.NewRetrievalController(retriever, gate, llm)
	ranker := usecase.NewCandidateRanker(cfg.DiscoveryLambda)

	retrievalOpts := usecase.RetrievalOptions{
		TopK:        cfg.RetrievalTopK,
		MinScore:    cfg.RetrievalMinScore,
		MaxAttempts: cfg.RetrievalMaxAttempts,
	}

	ingestUC := usecase.NewIngestUseCase(repo, storage, queue)
	processUC := usecase.NewProcessUseCase(repo, extractor, chunker, embedder, vectorIndex, llm)
	askUC := usecase.NewAskUseCase(controller, llm, retrievalOpts)
	discoveryUC := usecase.NewDiscoveryUseCase(llm, searcher, ranker, cfg.DiscoveryMinRelevance, cfg.DiscoveryMaxResults)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:    ingestUC,
		ProcessUC:   processUC,
		AskUC:       askUC,
		DiscoveryUC: discoveryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func selectGate(cfg config.Config, llm ports.CompletionService) usecase.QualityGate {
	if cfg.GateMode == "model" {
		return usecase.NewModelGate(llm, cfg.GateMaxEvidenceItems)
	}
	return usecase.HeuristicGate{}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
