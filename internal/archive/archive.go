// Package archive keeps generated insight reports in Badger.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"content-calendar/internal/model"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const reportPrefix = "report:"

var ErrNoReports = errors.New("no reports archived yet")

type Archive struct {
	db     *badger.DB
	logger *zap.Logger
	stop   chan struct{}
}

// Open opens the archive at path. An empty path keeps everything in memory.
func Open(path string, logger *zap.Logger) (*Archive, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Silence default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	a := &Archive{db: db, logger: logger, stop: make(chan struct{})}
	if path != "" {
		go a.collectGarbage(5 * time.Minute)
	}
	return a, nil
}

func (a *Archive) Close() {
	close(a.stop)
	a.db.Close()
}

func (a *Archive) collectGarbage(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.db.RunValueLogGC(0.7); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				a.logger.Warn("Badger value log GC failed", zap.Error(err))
			}
		case <-a.stop:
			return
		}
	}
}

// reportKey sorts chronologically.
func reportKey(r *model.Report) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", reportPrefix, r.CreatedAt.UnixNano(), r.ID))
}

func (a *Archive) Save(r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(reportKey(r), data)
	})
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (a *Archive) List(limit int) ([]model.Report, error) {
	var reports []model.Report

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(reportPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must start past the last key with the prefix.
		for it.Seek([]byte(reportPrefix + "\xff")); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r model.Report
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				reports = append(reports, r)
				return nil
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(reports) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (a *Archive) Latest() (*model.Report, error) {
	reports, err := a.List(1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoReports
	}
	return &reports[0], nil
}
