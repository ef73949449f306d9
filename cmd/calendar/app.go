package main

import (
	"context"
	"fmt"

	"content-calendar/internal/archive"
	"content-calendar/internal/calendar"
	"content-calendar/internal/config"
	"content-calendar/internal/dispatch"
	"content-calendar/internal/insights"
	"content-calendar/internal/server"
	"content-calendar/internal/store"
	"content-calendar/internal/worker"

	"github.com/openai/openai-go/v2/option"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the collaborators one command needs. Redis is only dialled when
// the record store or the generation queue lives there.
type app struct {
	rdb      *redis.Client
	store    store.Store
	archive  *archive.Archive
	calendar *calendar.Service
}

func buildApp(ctx context.Context, withArchive bool) (*app, error) {
	a := &app{}

	if cfg.Store.Driver == config.StoreRedis || cfg.Workflow.Mode == config.ModeQueue {
		rdb, err := store.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
	}

	switch cfg.Store.Driver {
	case config.StorePostgres:
		pg, err := store.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			a.Close()
			return nil, err
		}
		a.store = pg
	default:
		a.store = store.NewRedisStore(a.rdb, logger)
	}

	if withArchive {
		arch, err := archive.Open(cfg.Badger.Path, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.archive = arch
	}

	a.calendar = calendar.NewService(a.store, logger, calendar.Config{
		PerDay:          cfg.Schedule.PerDay,
		StartOffsetDays: cfg.Schedule.StartOffsetDays,
	})
	logger.Debug("App initialised",
		zap.String("store", cfg.Store.Driver),
		zap.String("workflow_mode", cfg.Workflow.Mode),
		zap.Bool("archive", withArchive))
	return a, nil
}

func (a *app) Close() {
	if a.archive != nil {
		a.archive.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
}

func (a *app) runner() *dispatch.HTTPRunner {
	return dispatch.NewHTTPRunner(cfg.Workflow.URL, cfg.Workflow.Token, cfg.Workflow.Ref)
}

// trigger is what the API calls on dispatch: the queue in queue mode, the
// workflow runner itself in direct mode.
func (a *app) trigger() dispatch.Trigger {
	if cfg.Workflow.Mode == config.ModeQueue {
		return dispatch.NewQueue(a.rdb)
	}
	return a.runner()
}

func (a *app) Worker() (*worker.Worker, error) {
	if a.rdb == nil {
		return nil, fmt.Errorf("worker needs redis for the generation queue")
	}
	if cfg.Workflow.URL == "" {
		return nil, fmt.Errorf("workflow.url is required to run the worker")
	}
	return worker.NewWorker(dispatch.NewQueue(a.rdb), a.runner(), logger), nil
}

func (a *app) Insights() *insights.Service {
	var summarizer insights.Summarizer
	if cfg.OpenAI.APIKey != "" {
		var opts []option.RequestOption
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		summarizer = insights.NewOpenAISummarizer(cfg.OpenAI.APIKey, cfg.OpenAI.Model, opts...)
	} else {
		logger.Warn("No OpenAI API key configured, insight reports will fail")
	}

	var reports insights.ReportArchive
	if a.archive != nil {
		reports = a.archive
	}

	return insights.NewService(a.store, summarizer, &insights.DefaultScraper{}, reports, logger, insights.Config{
		RecentLimit:   cfg.Insights.RecentLimit,
		DeclinedLimit: cfg.Insights.DeclinedLimit,
		ContextURLs:   cfg.Insights.ContextURLs,
		ExcerptChars:  cfg.Insights.ExcerptChars,
		ScrapeTimeout: cfg.Insights.ScrapeTimeout,
	})
}

func (a *app) Server() *server.Server {
	dispatcher := dispatch.NewDispatcher(a.calendar, a.trigger(), logger)
	return server.NewServer(a.calendar, dispatcher, a.Insights(), logger)
}
