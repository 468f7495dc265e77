package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mescon/Cachearr/internal/clock"
	"github.com/mescon/Cachearr/internal/config"
	"github.com/mescon/Cachearr/internal/debrid"
	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/eventbus"
	"github.com/mescon/Cachearr/internal/filter"
	"github.com/mescon/Cachearr/internal/indexer"
	"github.com/mescon/Cachearr/internal/logger"
	"github.com/mescon/Cachearr/internal/report"
	"github.com/mescon/Cachearr/internal/torrent"
)

// ErrRunInProgress is returned by Run while another run is executing.
var ErrRunInProgress = errors.New("a run is already in progress")

// Recorder stores run history. The pipeline only ever writes to it.
type Recorder interface {
	CreateRun(s domain.RunSummary) error
	FinishRun(s domain.RunSummary) error
	SaveRecord(runID string, position int, rec domain.ProcessedRecord) error
}

// TorrentAdder pushes one downloaded .torrent into the debrid account.
type TorrentAdder interface {
	AddTorrent(ctx context.Context, path, name string) (debrid.AddResult, error)
}

var _ TorrentAdder = (*debrid.Client)(nil)

// PipelineDeps contains everything a Pipeline needs.
type PipelineDeps struct {
	Config   *config.Config
	Indexer  *indexer.Client
	Debrid   TorrentAdder
	Filter   *filter.Filter
	Recorder Recorder
	EventBus eventbus.Publisher
	Clock    clock.Clock
}

// Pipeline is one pass over the Jackett cache: login, fetch, filter, then
// for each match download, hash, add to Real-Debrid, record and wait.
type Pipeline struct {
	cfg      *config.Config
	indexer  *indexer.Client
	debrid   TorrentAdder
	filter   *filter.Filter
	recorder Recorder
	eventBus eventbus.Publisher
	clock    clock.Clock
	running  atomic.Bool
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	c := deps.Clock
	if c == nil {
		c = clock.NewRealClock()
	}
	f := deps.Filter
	if f == nil {
		f = filter.New(deps.Config.Categories, deps.Config.TrackerDomain)
	}
	return &Pipeline{
		cfg:      deps.Config,
		indexer:  deps.Indexer,
		debrid:   deps.Debrid,
		filter:   f,
		recorder: deps.Recorder,
		eventBus: deps.EventBus,
		clock:    c,
	}
}

// Running reports whether a run is executing right now.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run executes one pipeline pass. Per-entry failures are recorded and never
// abort the run. A failed login returns an error; an empty or unreadable
// cache ends the run without touching the report.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer p.running.Store(false)

	summary := domain.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: p.clock.Now(),
		Status:    domain.StatusRunning,
	}
	if err := p.recorder.CreateRun(summary); err != nil {
		logger.Errorf("Failed to record run start: %v", err)
	}
	p.publish(domain.NewRunEvent(domain.RunStarted, summary.RunID, map[string]interface{}{
		"max_adds_per_minute": int64(p.cfg.MaxAddsPerMinute),
		"wait_seconds":        p.cfg.WaitTime.Seconds(),
	}))

	logger.Infof("Connecting to Jackett")
	session, err := p.indexer.Authenticate(ctx)
	if err != nil {
		logger.Errorf("Failed to log in to Jackett: %v", err)
		return p.finish(&summary, domain.StatusFailed, err)
	}

	logger.Infof("Retrieving Jackett cache")
	entries, err := p.indexer.FetchCache(ctx, session)
	if err != nil {
		logger.Errorf("Error while querying Jackett: %v", err)
	}
	if len(entries) == 0 {
		logger.Infof("No valid results found in Jackett cache")
		summary.Error = errString(err)
		_ = p.finish(&summary, domain.StatusEmpty, nil)
		return nil
	}
	summary.Seen = len(entries)

	matches := p.filter.Apply(entries)
	summary.Matched = len(matches)
	logger.Infof("%d of %d cache entries match the category and tracker filters", len(matches), len(entries))

	records := make([]domain.ProcessedRecord, 0, len(matches))
	for _, entry := range matches {
		rec := p.processEntry(ctx, session, entry)
		if rec.Added {
			summary.Added++
		}
		if err := p.recorder.SaveRecord(summary.RunID, len(records), rec); err != nil {
			logger.Errorf("Failed to record result for %s: %v", rec.Title, err)
		}
		records = append(records, rec)
		p.publish(domain.EntryProcessedEvent(summary.RunID, rec))

		logger.Infof("Waiting %.2f seconds before the next addition...", p.cfg.WaitTime.Seconds())
		if err := clock.Sleep(ctx, p.clock, p.cfg.WaitTime); err != nil {
			logger.Warnf("Run %s interrupted after %d entries: %v", summary.RunID, len(records), err)
			return p.finish(&summary, domain.StatusFailed, err)
		}
	}

	if err := report.Write(records, p.cfg.ReportPath); err != nil {
		logger.Errorf("Failed to write report: %v", err)
		return p.finish(&summary, domain.StatusFailed, err)
	}
	logger.Infof("Jackett cache processing and addition to Real-Debrid completed. Results saved in %s", p.cfg.ReportPath)

	return p.finish(&summary, domain.StatusCompleted, nil)
}

// processEntry never fails: every problem ends up in the record as "not added".
func (p *Pipeline) processEntry(ctx context.Context, session *indexer.Session, entry domain.CacheEntry) (rec domain.ProcessedRecord) {
	rec = domain.NewProcessedRecord(entry)

	logger.Infof("Processing: %s", entry.Title)
	logger.Infof("Category: %v", entry.Category)
	logger.Infof("Source: %s", orDefault(entry.Details, "Unknown"))
	logger.Infof("Link: %s", orDefault(entry.Link, "Not available"))

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic while processing %s: %v", entry.Title, r)
			rec.Added = false
			rec.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if entry.Link == "" {
		logger.Infof("Unable to obtain the .torrent file.")
		rec.Error = "entry has no download link"
		return rec
	}

	downloaded := false
	err := torrent.WithFile(ctx, session.Client(), entry.Link, func(path string) error {
		downloaded = true
		result, err := p.debrid.AddTorrent(ctx, path, entry.Title)
		rec.InfoHash = result.Hash
		return err
	})

	switch {
	case err == nil:
		rec.Added = true
		logger.Infof("Torrent successfully added to Real-Debrid: %s", entry.Title)
	case !downloaded:
		logger.Errorf("Error while downloading the .torrent file: %v", err)
		logger.Infof("Unable to obtain the .torrent file.")
		rec.Error = err.Error()
	default:
		logger.Infof("Failed to add torrent to Real-Debrid: %s (%v)", entry.Title, err)
		rec.Error = err.Error()
	}
	return rec
}

func (p *Pipeline) finish(summary *domain.RunSummary, status domain.RunStatus, runErr error) error {
	finished := p.clock.Now()
	summary.FinishedAt = &finished
	summary.Status = status
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	if err := p.recorder.FinishRun(*summary); err != nil {
		logger.Errorf("Failed to record run end: %v", err)
	}
	p.publish(domain.RunFinishedEvent(*summary))

	logger.Infof("Run %s %s: %d seen, %d matched, %d added in %s",
		summary.RunID, status, summary.Seen, summary.Matched, summary.Added, summary.Duration().Round(time.Millisecond))
	return runErr
}

func (p *Pipeline) publish(event domain.Event) {
	if p.eventBus == nil {
		return
	}
	if err := p.eventBus.Publish(event); err != nil {
		logger.Errorf("Failed to publish %s: %v", event.EventType, err)
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
