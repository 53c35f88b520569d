package diary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/llm"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/notion"
)

// Diary event kinds published to the activity stream.
const (
	EventCreated  = "diary.created"
	EventMerged   = "diary.merged"
	EventDeduped  = "diary.deduped"
	EventRepaired = "diary.repaired"
)

// EventPublisher receives diary activity events. Implementations must
// not block.
type EventPublisher interface {
	PublishDiaryEvent(kind string, data map[string]string)
}

// Result is the outcome of one processed entry.
type Result struct {
	RecordingID string    `json:"recording_id,omitempty"`
	PageID      string    `json:"page_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags"`
	Created     bool      `json:"created"`
	Duplicate   bool      `json:"duplicate,omitempty"`
}

// Service runs the consolidation pipeline: resolve date, format
// content, locate the day's page, then merge into it or create it.
type Service struct {
	store     notion.Store
	resolver  *Resolver
	formatter *Formatter
	locator   *Locator
	merger    *Merger
	dedup     *Deduplicator
	journal   *journal.DB
	events    EventPublisher
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time

	dedupeFlight singleflight.Group
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithJournal enables the processing journal.
func WithJournal(db *journal.DB) ServiceOption {
	return func(s *Service) { s.journal = db }
}

// WithEvents enables activity event publishing.
func WithEvents(p EventPublisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the pipeline components.
func NewService(store notion.Store, client llm.Client, loc *time.Location, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		store:     store,
		resolver:  NewResolver(client, logger),
		formatter: NewFormatter(client, logger),
		locator:   NewLocator(store),
		merger:    NewMerger(store, client, logger),
		dedup:     NewDeduplicator(store, logger),
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessEntry runs the full pipeline for one transcribed utterance.
// extraTags are unioned with the resolver's inferred tags. The steps
// run strictly sequentially; each feeds the next.
//
// A transcript whose checksum was already journaled for the same diary
// date is not reprocessed; the prior page reference is returned with
// Duplicate set.
func (s *Service) ProcessEntry(ctx context.Context, text, source string, extraTags []string) (*Result, error) {
	now := s.now().In(s.loc)

	resolved := s.resolver.Resolve(ctx, text, now)
	tags := UnionTags(resolved.Tags, extraTags)
	title := FormatTitle(resolved.Date)

	cs := checksum.Sum([]byte(text))
	if s.journal != nil {
		prior, err := s.journal.Find(cs, resolved.Date)
		if err != nil {
			s.logger.Warn("journal lookup failed", slog.String("error", err.Error()))
		} else if prior != nil {
			s.logger.Info("transcript already processed, skipping",
				slog.String("recording_id", prior.ID),
				slog.String("title", title))
			return &Result{
				RecordingID: prior.ID,
				PageID:      prior.PageID,
				URL:         prior.PageURL,
				Title:       title,
				Date:        resolved.Date,
				Tags:        tags,
				Duplicate:   true,
			}, nil
		}
	}

	formatted := s.formatter.Format(ctx, text)

	page, err := s.locator.FindByDate(ctx, resolved.Date)
	if err != nil {
		return nil, fmt.Errorf("locate page for %s: %w", title, err)
	}

	var ref *models.PageRef
	created := false
	if page != nil {
		ref, err = s.merger.Merge(ctx, page, formatted, tags, resolved.Date)
		if err != nil {
			return nil, err
		}
		tags = UnionTags(page.Tags, tags)
	} else {
		ref, err = s.store.CreatePage(ctx, title, formatted, tags, resolved.Date)
		if err != nil {
			return nil, fmt.Errorf("create page %s: %w", title, err)
		}
		created = true
	}

	res := &Result{
		PageID:  ref.PageID,
		URL:     ref.URL,
		Title:   title,
		Date:    resolved.Date,
		Tags:    tags,
		Created: created,
	}

	if s.journal != nil {
		rec := models.Recording{
			ID:         uuid.NewString(),
			Source:     source,
			Transcript: text,
			Checksum:   cs,
			PageID:     ref.PageID,
			PageURL:    ref.URL,
			DiaryDate:  resolved.Date,
			CreatedAt:  now,
		}
		if err := s.journal.Record(rec); err != nil {
			s.logger.Warn("journal record failed", slog.String("error", err.Error()))
		} else {
			res.RecordingID = rec.ID
		}
	}

	s.publish(eventKind(created), map[string]string{
		"page_id": ref.PageID,
		"title":   title,
	})

	s.logger.Info("entry processed",
		slog.String("title", title),
		slog.String("page_id", ref.PageID),
		slog.Bool("created", created),
		slog.String("source", source))
	return res, nil
}

// FindByDate exposes the locator for read-only lookups.
func (s *Service) FindByDate(ctx context.Context, date time.Time) (*models.DiaryPage, error) {
	return s.locator.FindByDate(ctx, date)
}

// ListPages returns every non-archived page, newest first.
func (s *Service) ListPages(ctx context.Context) ([]models.DiaryPage, error) {
	return s.store.QueryPages(ctx, notion.Filter{})
}

// ListRecordings returns journaled recordings, newest first.
func (s *Service) ListRecordings(limit, offset int) ([]models.Recording, int, error) {
	if s.journal == nil {
		return []models.Recording{}, 0, nil
	}
	return s.journal.List(limit, offset)
}

// Dedupe runs the deduplication batch. Concurrent triggers collapse
// into one run via singleflight; the pipeline itself takes no locks
// (see the Deduplicator for the convergence argument).
func (s *Service) Dedupe(ctx context.Context) (DedupeResult, error) {
	v, err, _ := s.dedupeFlight.Do("dedupe", func() (any, error) {
		res, err := s.dedup.Run(ctx)
		if err != nil {
			return DedupeResult{}, err
		}
		if res.MergedCount > 0 {
			s.publish(EventDeduped, map[string]string{
				"merged":  fmt.Sprint(res.MergedCount),
				"deleted": fmt.Sprint(res.DeletedCount),
			})
		}
		return res, nil
	})
	if err != nil {
		return DedupeResult{}, err
	}
	return v.(DedupeResult), nil
}

// RepairDates rewrites date properties that disagree with the date
// embedded in the canonical title.
func (s *Service) RepairDates(ctx context.Context) (int, error) {
	fixed, err := RepairDates(ctx, s.store, s.logger)
	if err != nil {
		return 0, err
	}
	if fixed > 0 {
		s.publish(EventRepaired, map[string]string{"fixed": fmt.Sprint(fixed)})
	}
	return fixed, nil
}

func (s *Service) publish(kind string, data map[string]string) {
	if s.events == nil {
		return
	}
	s.events.PublishDiaryEvent(kind, data)
}

func eventKind(created bool) string {
	if created {
		return EventCreated
	}
	return EventMerged
}
