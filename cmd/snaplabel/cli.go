package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/config"
	"github.com/hpungsan/snaplabel/internal/content"
	"github.com/hpungsan/snaplabel/internal/db"
	"github.com/hpungsan/snaplabel/internal/errors"
	"github.com/hpungsan/snaplabel/internal/imaging"
	"github.com/hpungsan/snaplabel/internal/inference"
	"github.com/hpungsan/snaplabel/internal/logging"
	"github.com/hpungsan/snaplabel/internal/mcp"
	"github.com/hpungsan/snaplabel/internal/metrics"
	"github.com/hpungsan/snaplabel/internal/session"
	"github.com/hpungsan/snaplabel/internal/thumbnail"
	"github.com/hpungsan/snaplabel/internal/view"
	"github.com/hpungsan/snaplabel/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// A nil provider means the model is acquired from cfg on first use.
func newCLIApp(cfg *config.Config, provider inference.Provider) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	app := &cli.App{
		Name:    "snaplabel",
		Usage:   "Classify snapshots and keep notes per label",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(cfg, provider),
			classifyCmd(cfg, provider),
			vocabularyCmd(cfg, provider),
			thumbnailCmd(),
			fetchModelCmd(cfg),
			mcpCmd(cfg, provider),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(cfg *config.Config, provider inference.Provider) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Interface to listen on (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := serveConfig(cfg, c.String("bind"), c.Int("port"))
			if err := config.Validate(cfg); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			defer func() { _ = logger.Sync() }()

			database, err := db.Init()
			if err != nil {
				return outputError(errors.NewInternal(fmt.Errorf("failed to initialize database: %w", err)))
			}
			defer database.Close()

			collector := metrics.NewCollector()
			sessions := session.NewManager(database, time.Duration(cfg.SessionTTLMinutes)*time.Minute,
				session.WithManagerMetrics(collector),
				session.WithManagerLogger(logger),
			)

			if provider == nil {
				loader := inference.NewLoader(cfg, logger)
				defer func() { _ = loader.Close() }()
				provider = loader
			}

			srv := web.NewServer(cfg, web.Options{
				Sessions: sessions,
				Provider: provider,
				Metrics:  collector,
				Logger:   logger,
				Version:  Version,
			})
			if err := web.Run(srv, logger); err != nil && err != http.ErrServerClosed {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// classifyOutput is the classify command result.
type classifyOutput struct {
	File   string     `json:"file"`
	Label  string     `json:"label"`
	Format string     `json:"format"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Rows   []view.Row `json:"rows"`
}

// classifyCmd creates the classify command.
func classifyCmd(cfg *config.Config, provider inference.Provider) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify an image file and print ranked probabilities",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top", Aliases: []string{"n"}, Usage: "Only print the N most probable labels (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one image file is required"))
			}
			path := c.Args().First()
			if !imaging.AllowedExtension(path) {
				return outputError(errors.NewInvalidRequest("unsupported file type (allowed: jpg, png, jpeg, webp, tiff)"))
			}
			if c.Int("top") < 0 {
				return outputError(errors.NewInvalidRequest("top must be non-negative"))
			}

			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return outputError(errors.NewNotFound(path))
				}
				return outputError(errors.NewInternal(err))
			}

			logger, provider, cleanup, err := cliProvider(cfg, provider)
			if err != nil {
				return outputError(err)
			}
			defer cleanup()

			sess := session.New("cli", content.NewMemoryRegistry(), session.WithLogger(logger))
			sess.Hold(data)
			res, err := sess.Classify(c.Context, provider)
			if err != nil {
				return outputError(err)
			}

			rows := view.Rows(res.Vocabulary, res.Prediction.Probs, res.Prediction.Label)
			if n := c.Int("top"); n > 0 && n < len(rows) {
				rows = rows[:n]
			}
			return outputJSON(classifyOutput{
				File:   path,
				Label:  res.Prediction.Label,
				Format: res.Format,
				Width:  res.Width,
				Height: res.Height,
				Rows:   rows,
			})
		},
	}
}

// vocabularyCmd creates the vocabulary command.
func vocabularyCmd(cfg *config.Config, provider inference.Provider) *cli.Command {
	return &cli.Command{
		Name:  "vocabulary",
		Usage: "Print the labels the model can predict",
		Action: func(c *cli.Context) error {
			_, provider, cleanup, err := cliProvider(cfg, provider)
			if err != nil {
				return outputError(err)
			}
			defer cleanup()

			p, err := provider.Predictor(c.Context)
			if err != nil {
				return outputError(err)
			}
			vocab := p.Vocabulary()
			return outputJSON(map[string]any{"labels": vocab, "count": len(vocab)})
		},
	}
}

// thumbnailCmd creates the thumbnail command.
func thumbnailCmd() *cli.Command {
	return &cli.Command{
		Name:      "thumbnail",
		Usage:     "Resolve the thumbnail URL for a video link",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one url is required"))
			}
			url := c.Args().First()
			id, _ := thumbnail.VideoID(url)
			thumb, ok := thumbnail.Resolve(url)
			return outputJSON(map[string]any{
				"url":       url,
				"video_id":  id,
				"thumbnail": thumb,
				"found":     ok,
			})
		},
	}
}

// fetchModelCmd creates the fetch-model command.
func fetchModelCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "fetch-model",
		Usage: "Download the model and its metadata when missing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Download URL template with one %s for the file id", Value: inference.DefaultDownloadURL},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, time.Duration(cfg.DownloadTimeoutSeconds)*time.Second)
			defer cancel()
			client := &http.Client{}

			metaDownloaded, err := inference.Fetch(ctx, client, c.String("url"), cfg.MetadataID, cfg.MetadataPath)
			if err != nil {
				return outputError(errors.NewModelAcquisition(cfg.MetadataPath, err))
			}
			modelDownloaded, err := inference.Fetch(ctx, client, c.String("url"), cfg.ModelID, cfg.ModelPath)
			if err != nil {
				return outputError(errors.NewModelAcquisition(cfg.ModelPath, err))
			}

			return outputJSON(map[string]any{
				"metadata_path":       cfg.MetadataPath,
				"metadata_downloaded": metaDownloaded,
				"model_path":          cfg.ModelPath,
				"model_downloaded":    modelDownloaded,
			})
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(cfg *config.Config, provider inference.Provider) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the classifier as MCP tools over stdio",
		Action: func(c *cli.Context) error {
			logger, provider, cleanup, err := cliProvider(cfg, provider)
			if err != nil {
				return outputError(err)
			}
			defer cleanup()

			sess := session.New("mcp", content.NewMemoryRegistry(), session.WithLogger(logger))
			if err := mcp.Run(sess, provider, Version, logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// serveConfig applies command-line overrides on top of cfg.
func serveConfig(cfg *config.Config, bind string, port int) *config.Config {
	return config.Merge(cfg, &config.Config{Bind: bind, Port: port})
}

// cliProvider returns a stderr logger and the provider to classify with.
// The returned cleanup releases a model loaded here.
func cliProvider(cfg *config.Config, provider inference.Provider) (*zap.Logger, inference.Provider, func(), error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, errors.NewInvalidRequest(err.Error())
	}
	if provider != nil {
		return logger, provider, func() { _ = logger.Sync() }, nil
	}
	loader := inference.NewLoader(cfg, logger)
	return logger, loader, func() {
		_ = loader.Close()
		_ = logger.Sync()
	}, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
