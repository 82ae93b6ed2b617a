package main

import (
	"fmt"
	"path/filepath"

	"pageassist/internal/auth"
	"pageassist/internal/chat"
	"pageassist/internal/config"
	"pageassist/internal/history"
	"pageassist/internal/logging"
	"pageassist/internal/pagecontent"
	"pageassist/internal/prompts"
	"pageassist/internal/provider"
	"pageassist/internal/rag"
	"pageassist/internal/storage"
	"pageassist/internal/websearch"
)

// app holds the wired application graph.
type app struct {
	cfg          *config.Config
	kv           storage.KV
	auth         *auth.Manager
	providers    *provider.Registry
	selector     *provider.Selector
	prompts      *prompts.Store
	history      *history.Store
	indexer      chat.PageIndexer
	orchestrator *chat.Orchestrator
}

// buildApp wires every component from configuration. Retrieval is enabled
// only when an embedding model is configured.
func buildApp(cfg *config.Config) (*app, error) {
	kv, err := storage.NewFileKV(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}

	authLogger := logging.NewComponentLogger("auth")
	authManager := auth.NewManager(kv, authLogger)
	if cfg.SSO.URL != "" {
		err := authManager.SetConfig(auth.GatewayConfig{
			SSOURL:     cfg.SSO.URL,
			GatewayURL: cfg.SSO.GatewayURL,
			ProjectID:  cfg.SSO.ProjectID,
			Location:   cfg.SSO.Location,
			Model:      cfg.SSO.Model,
		})
		if err != nil {
			return nil, err
		}
	}

	registry := provider.NewRegistry(kv)
	selector := provider.NewSelector(registry, authManager, cfg.OllamaURL)

	promptStore := prompts.NewStore(kv)
	historyStore := history.NewStore(kv)

	var retriever *rag.Retriever
	var urlIndexer *rag.URLIndexer
	if cfg.EmbeddingModel != "" {
		embedder, err := rag.NewEmbedder(rag.EmbedderConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.EmbeddingModel,
		})
		if err != nil {
			return nil, err
		}
		chunker, err := rag.NewChunker(rag.ChunkerConfig{})
		if err != nil {
			return nil, err
		}
		store, err := rag.NewVectorStore(rag.StoreConfig{
			PersistPath: filepath.Join(expandedDataDir(kv, cfg.DataDir), "vectors"),
		}, embedder)
		if err != nil {
			return nil, err
		}
		retriever = rag.NewRetriever(rag.RetrieverConfig{}, store)
		urlIndexer = rag.NewURLIndexer(rag.NewIndexer(chunker, embedder, store))
	}

	assembler, err := prompts.NewAssembler(promptStore)
	if err != nil {
		return nil, err
	}

	opts := chat.Options{
		Selector:      selector,
		Assembler:     assembler,
		History:       historyStore,
		Search:        websearch.NewDuckDuckGo(),
		Pages:         pagecontent.NewClient(),
		DefaultSystem: cfg.SystemPrompt,
	}
	if retriever != nil {
		opts.Retriever = retriever
		opts.Indexer = urlIndexer
	}

	result := &app{
		cfg:          cfg,
		kv:           kv,
		auth:         authManager,
		providers:    registry,
		selector:     selector,
		prompts:      promptStore,
		history:      historyStore,
		orchestrator: chat.NewOrchestrator(opts),
	}
	if urlIndexer != nil {
		result.indexer = urlIndexer
	}
	return result, nil
}

// expandedDataDir resolves the configured data dir through the store's own
// expansion so the vector store lands next to the JSON records.
func expandedDataDir(kv storage.KV, configured string) string {
	type rooted interface{ Root() string }
	if r, ok := kv.(rooted); ok {
		return r.Root()
	}
	return configured
}
