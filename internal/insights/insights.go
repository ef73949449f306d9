// Package insights produces editorial reports from calendar activity.
package insights

import (
	"context"
	"time"

	"content-calendar/internal/archive"
	"content-calendar/internal/model"
	"content-calendar/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EntryFinder is the read side of the record store.
type EntryFinder interface {
	Find(ctx context.Context, q store.Query) ([]model.Entry, int, error)
}

// ReportArchive stores generated reports. archive.Archive implements it.
type ReportArchive interface {
	Save(r *model.Report) error
	Latest() (*model.Report, error)
}

type Config struct {
	RecentLimit   int
	DeclinedLimit int
	ContextURLs   []string
	ExcerptChars  int
	ScrapeTimeout time.Duration
}

type Service struct {
	entries    EntryFinder
	summarizer Summarizer
	scraper    Scraper
	archive    ReportArchive
	logger     *zap.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(entries EntryFinder, summarizer Summarizer, scraper Scraper, archive ReportArchive, logger *zap.Logger, cfg Config) *Service {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	if cfg.DeclinedLimit <= 0 {
		cfg.DeclinedLimit = 50
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = 600
	}
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = 30 * time.Second
	}
	return &Service{
		entries:    entries,
		summarizer: summarizer,
		scraper:    scraper,
		archive:    archive,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate builds a report and archives it. Summarizer failures end up in
// the report rather than the returned error; only store failures are
// returned. Entries are never modified.
func (s *Service) Generate(ctx context.Context) (*model.Report, error) {
	in, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		ID:             uuid.New(),
		CreatedAt:      s.now().UTC(),
		RecentCount:    len(in.Recent),
		DeclinedCount:  len(in.Declined),
		ContextSources: make([]string, 0, len(in.Existing)),
	}
	for _, d := range in.Existing {
		if d.Source == "published" {
			report.PublishedCount++
			continue
		}
		report.ContextSources = append(report.ContextSources, d.Source)
	}

	if s.summarizer == nil {
		report.Error = "no summarizer configured"
	} else if summary, err := s.summarizer.Summarize(ctx, in); err != nil {
		s.logger.Error("Summarization failed", zap.Error(err))
		report.Error = err.Error()
	} else {
		report.OK = true
		report.Summary = summary
	}

	if s.archive != nil {
		if err := s.archive.Save(report); err != nil {
			s.logger.Error("Failed to archive report", zap.String("id", report.ID.String()), zap.Error(err))
		}
	}

	s.logger.Info("Insight report generated",
		zap.String("id", report.ID.String()),
		zap.Bool("ok", report.OK),
		zap.Int("recent", report.RecentCount),
		zap.Int("declined", report.DeclinedCount))
	return report, nil
}

// Latest returns the most recently archived report.
func (s *Service) Latest() (*model.Report, error) {
	if s.archive == nil {
		return nil, archive.ErrNoReports
	}
	return s.archive.Latest()
}

func (s *Service) collect(ctx context.Context) (Input, error) {
	recent, _, err := s.entries.Find(ctx, store.Query{
		Sort:  store.SortCreatedAt,
		Desc:  true,
		Limit: s.cfg.RecentLimit,
	})
	if err != nil {
		return Input{}, err
	}

	rejected, _, err := s.entries.Find(ctx, store.Query{
		Statuses: []model.Status{model.StatusRejected},
		Sort:     store.SortUpdatedAt,
		Desc:     true,
		Limit:    s.cfg.DeclinedLimit,
	})
	if err != nil {
		return Input{}, err
	}
	declined := make([]model.Entry, 0, len(rejected))
	for _, e := range rejected {
		if e.DeclineReason != nil && *e.DeclineReason != "" {
			declined = append(declined, e)
		}
	}

	published, _, err := s.entries.Find(ctx, store.Query{
		Statuses: []model.Status{model.StatusPublished},
		Sort:     store.SortUpdatedAt,
		Desc:     true,
	})
	if err != nil {
		return Input{}, err
	}

	existing := make([]Document, 0, len(published)+len(s.cfg.ContextURLs))
	for _, e := range published {
		existing = append(existing, Document{Source: "published", Title: e.Keyword})
	}
	existing = append(existing, s.scrapeContext()...)

	return Input{Recent: recent, Declined: declined, Existing: existing}, nil
}

// scrapeContext fetches the configured pages. Pages that fail are skipped.
func (s *Service) scrapeContext() []Document {
	if s.scraper == nil {
		return nil
	}
	var docs []Document
	for _, url := range s.cfg.ContextURLs {
		art, err := s.scraper.Scrape(url, s.cfg.ScrapeTimeout)
		if err != nil {
			s.logger.Warn("Failed to scrape context page", zap.String("url", url), zap.Error(err))
			continue
		}
		title := art.Title
		if title == "" {
			title = url
		}
		docs = append(docs, Document{
			Source: url,
			Title:  title,
			Text:   excerpt(art.TextContent, s.cfg.ExcerptChars),
		})
	}
	return docs
}
