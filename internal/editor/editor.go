// Package editor runs engine edits against stored books. Every edit holds the
// document's lease, replays unsaved journal entries, applies the engine,
// refreshes the status tally, journals the edit and saves atomically.
package editor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nainya/parajoin/internal/lease"
	"github.com/nainya/parajoin/internal/logger"
	"github.com/nainya/parajoin/internal/metrics"
	"github.com/nainya/parajoin/pkg/align"
	"github.com/nainya/parajoin/pkg/document"
	"github.com/nainya/parajoin/pkg/join"
	"github.com/nainya/parajoin/pkg/repo"
	"github.com/nainya/parajoin/pkg/wal"
)

// Config wires an Editor to its collaborators
type Config struct {
	Repo       *repo.Repo
	Locker     lease.Locker     // nil: in-process leases
	JournalDir string           // empty: <data dir>/.journal
	Options    join.Options     // separator and reset policy for every edit
	Backup     bool             // copy each book once before its first edit
	Logger     *logger.Logger   // nil: global logger
	Metrics    *metrics.Metrics // nil: no metrics
}

// Editor applies edits to books in a repository
type Editor struct {
	repo       *repo.Repo
	locker     lease.Locker
	journalDir string
	opts       join.Options
	backup     bool
	log        *logger.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	backedUp map[string]bool
}

// New creates an Editor
func New(cfg Config) (*Editor, error) {
	if cfg.Repo == nil {
		return nil, errors.New("editor: repository is required")
	}
	e := &Editor{
		repo:       cfg.Repo,
		locker:     cfg.Locker,
		journalDir: cfg.JournalDir,
		opts:       cfg.Options,
		backup:     cfg.Backup,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		backedUp:   make(map[string]bool),
	}
	if e.locker == nil {
		e.locker = lease.NewLocal()
	}
	if e.journalDir == "" {
		e.journalDir = filepath.Join(cfg.Repo.Dir(), ".journal")
	}
	if e.log == nil {
		e.log = logger.GetGlobalLogger()
	}
	return e, nil
}

// Options returns the engine options used for every edit
func (e *Editor) Options() join.Options { return e.opts }

// Toggle sets the join flag of one paragraph
func (e *Editor) Toggle(ctx context.Context, id string, key document.Key, on bool) (join.Change, error) {
	var ch join.Change
	err := e.mutate(ctx, "toggle", id, func(doc *document.Document) (wal.Entry, int, error) {
		var err error
		ch, err = join.ApplyToggle(doc, key, on, e.opts)
		if err != nil {
			return wal.Entry{}, 0, err
		}
		if ch.Rejected && e.metrics != nil {
			e.metrics.TogglesRejected.Inc()
		}
		return wal.ToggleEntry(key, on, e.opts), ch.Changed, nil
	})
	return ch, err
}

// Rebuild recomputes every run of a book
func (e *Editor) Rebuild(ctx context.Context, id string) (join.Summary, error) {
	var sum join.Summary
	err := e.mutate(ctx, "rebuild", id, func(doc *document.Document) (wal.Entry, int, error) {
		sum = join.RebuildAll(doc, e.opts)
		if e.metrics != nil {
			e.metrics.HeadsNormalized.Add(float64(sum.Normalized))
		}
		return wal.RebuildEntry(e.opts), sum.Changed, nil
	})
	return sum, err
}

// Align copies the best translation across paragraphs sharing joined text
func (e *Editor) Align(ctx context.Context, id string) (int, error) {
	var n int
	err := e.mutate(ctx, "align", id, func(doc *document.Document) (wal.Entry, int, error) {
		n = align.ByJoinedText(doc)
		if e.metrics != nil {
			e.metrics.ParagraphsAligned.Add(float64(n))
		}
		return wal.AlignEntry(), n, nil
	})
	return n, err
}

// Paragraph returns a copy of one paragraph, including edits journaled but not yet saved
func (e *Editor) Paragraph(ctx context.Context, id string, key document.Key) (document.Paragraph, error) {
	doc, err := e.current(id)
	if err != nil {
		return document.Paragraph{}, err
	}
	slot, ok := doc.Lookup(key)
	if !ok {
		return document.Paragraph{}, fmt.Errorf("%w: %s", join.ErrParagraphNotFound, key)
	}
	return *doc.Paragraph(slot), nil
}

// Stats describes a stored book
type Stats struct {
	Pages         int                   `json:"pages"`
	Paragraphs    int                   `json:"paragraphs"`
	Bases         int                   `json:"bases"`
	Continuations int                   `json:"continuations"`
	Counts        document.StatusCounts `json:"trans_status_counts"`
}

// Stats summarizes a book's join flags and translation statuses, including
// edits journaled but not yet saved
func (e *Editor) Stats(ctx context.Context, id string) (Stats, error) {
	doc, err := e.current(id)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Pages:      len(doc.Pages),
		Paragraphs: len(doc.Paragraphs),
		Counts:     document.CountStatuses(doc),
	}
	doc.Walk(func(_ document.Key, p *document.Paragraph) {
		if p.Join {
			st.Continuations++
		} else {
			st.Bases++
		}
	})
	return st, nil
}

// List returns the ids of the stored books
func (e *Editor) List() ([]string, error) {
	return e.repo.List()
}

type applyFunc func(doc *document.Document) (entry wal.Entry, changed int, err error)

func (e *Editor) mutate(ctx context.Context, op, id string, apply applyFunc) (err error) {
	start := time.Now()
	changed := 0
	defer func() {
		e.log.LogEdit(op, id, time.Since(start), changed, err)
		if e.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			e.metrics.RecordEdit(op, status, time.Since(start), changed)
		}
	}()

	elog := e.log.EditLogger(op, id)

	l, err := e.locker.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(context.WithoutCancel(ctx)); rerr != nil {
			elog.Warn("Lease release failed").Err(rerr).Send()
		}
	}()

	doc, err := e.load(id)
	if err != nil {
		return err
	}

	journal, err := e.openJournal(id)
	if err != nil {
		return err
	}
	defer journal.Close()

	doc = e.recover(elog, id, journal.Path, doc)

	if err := e.ensureBackup(elog, id); err != nil {
		return err
	}

	entry, n, err := apply(doc)
	if err != nil {
		return err
	}
	changed = n
	elog.Debug("Engine applied").Int("changed", n).Int("paragraphs", len(doc.Paragraphs)).Send()
	doc.SetStatusCounts(document.CountStatuses(doc))

	if _, err := journal.Append(entry); err != nil {
		return fmt.Errorf("journal %s: %w", op, err)
	}
	if err := e.save(id, doc); err != nil {
		return err
	}
	if err := journal.Checkpoint(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if e.metrics != nil {
		e.metrics.DocumentParagraphs.Set(float64(len(doc.Paragraphs)))
	}
	return nil
}

// recover returns doc with the edits journaled before a save that never happened.
// A journal that no longer matches the book is logged and superseded by the next checkpoint.
func (e *Editor) recover(log *logger.Logger, id, path string, doc *document.Document) *document.Document {
	recovered, stats, err := wal.NewRecovery(path).Recover(doc)
	if err != nil {
		log.Warn("Journal replay failed").Err(err).Send()
		return doc
	}
	if stats.ReplayedEdits == 0 {
		return doc
	}
	e.log.LogRecovery(id, stats.ReplayedEdits, stats.LastCheckpointLSN)
	if e.metrics != nil {
		e.metrics.JournalReplaysTotal.Add(float64(stats.ReplayedEdits))
	}
	return recovered
}

// current loads a book for reading and applies its pending journal without taking the lease
func (e *Editor) current(id string) (*document.Document, error) {
	doc, err := e.load(id)
	if err != nil {
		return nil, err
	}
	path, err := e.journalPath(id)
	if err != nil {
		return nil, err
	}
	recovered, stats, err := wal.NewRecovery(path).Recover(doc)
	if err != nil {
		e.log.Debug("Pending journal not applied").Str("doc", id).Err(err).Send()
		return doc, nil
	}
	if stats.ReplayedEdits > 0 {
		e.log.Debug("Pending journal applied").Str("doc", id).Int("edits", stats.ReplayedEdits).Send()
	}
	return recovered, nil
}

func (e *Editor) journalPath(id string) (string, error) {
	path, err := e.repo.Path(id)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".wal"
	return filepath.Join(e.journalDir, name), nil
}

func (e *Editor) openJournal(id string) (*wal.WAL, error) {
	path, err := e.journalPath(id)
	if err != nil {
		return nil, err
	}
	journal := &wal.WAL{Path: path}
	if err := journal.Open(); err != nil {
		return nil, fmt.Errorf("open journal %s: %w", id, err)
	}
	return journal, nil
}

func (e *Editor) ensureBackup(log *logger.Logger, id string) error {
	if !e.backup {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backedUp[id] {
		return nil
	}
	dest, err := e.repo.Backup(id)
	if err != nil {
		return fmt.Errorf("backup %s: %w", id, err)
	}
	e.backedUp[id] = true
	log.Info("Backup written").Str("path", dest).Send()
	return nil
}

func (e *Editor) load(id string) (*document.Document, error) {
	start := time.Now()
	doc, err := e.repo.Load(id)
	if e.metrics != nil {
		e.metrics.RecordStoreOperation("load", time.Since(start))
	}
	if err == nil {
		e.log.StoreLogger("load").Debug("Book loaded").Str("doc", id).Int("paragraphs", len(doc.Paragraphs)).Dur("duration", time.Since(start)).Send()
	}
	return doc, err
}

func (e *Editor) save(id string, doc *document.Document) error {
	start := time.Now()
	err := e.repo.Save(id, doc)
	if e.metrics != nil {
		e.metrics.RecordStoreOperation("save", time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	e.log.StoreLogger("save").Debug("Book saved").Str("doc", id).Dur("duration", time.Since(start)).Send()
	return nil
}
