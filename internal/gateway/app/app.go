package app

import (
	"context"
	"fmt"
	"log"

	"graphscape/internal/archive"
	"graphscape/internal/gateway/config"
	"graphscape/internal/gateway/handler"
	"graphscape/internal/gateway/server"
	"graphscape/internal/generation"
	"graphscape/internal/hub"
	"graphscape/internal/llmclient"
	"graphscape/internal/sandbox"
	"graphscape/internal/scriptgen"
	"graphscape/internal/store"
)

type App struct {
	server *server.Server
	store  store.Store
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	st := store.NewFromEnv()
	liveHub := hub.New()

	filter := sandbox.NewFilter(cfg.Sandbox.AllowedModules)
	executor := sandbox.NewExecutor(cfg.Sandbox.RunnerPath)
	executor.Timeout = cfg.Sandbox.Timeout
	executor.MaxOutputBytes = cfg.Sandbox.MaxOutputBytes
	executor.MaxMemoryBytes = cfg.Sandbox.MaxMemoryBytes
	executor.MaxSteps = cfg.Sandbox.MaxSteps

	genSvc := generation.NewService(filter, executor, st, liveHub)

	if cfg.Archive.Enabled {
		arch, archErr := archive.NewS3Archive(archive.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if archErr != nil {
			log.Printf("snapshot archive disabled: %v", archErr)
		} else {
			genSvc.SetArchiver(arch)
		}
	}

	var textGen scriptgen.TextGenerator
	if cfg.GenAI.Enabled {
		gemini, genErr := llmclient.NewGeminiClient(ctx, cfg.GenAI.Model)
		if genErr != nil {
			log.Printf("script generation disabled: %v", genErr)
		} else {
			textGen = gemini
		}
	}
	scriptgenSvc := scriptgen.New(textGen)

	graphHandler := handler.NewGraphHandler(st, liveHub)
	generateHandler := handler.NewGenerateHandler(genSvc, scriptgenSvc, st)
	wsHandler := handler.NewWSHandler(liveHub, st)

	// Routing & Server
	mux := server.NewMux(graphHandler, generateHandler, wsHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		store:  st,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if closeErr := a.store.Close(); err == nil {
		err = closeErr
	}
	return err
}
