// Package ingestion pulls random questions from the source until the
// requested number of new, unique questions has been stored.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quizbank/quizbank/internal/question"
	"github.com/quizbank/quizbank/internal/question/repository"
	"github.com/quizbank/quizbank/internal/runlog"
	"github.com/quizbank/quizbank/internal/source"
	"github.com/quizbank/quizbank/pkg/logger"
	"github.com/quizbank/quizbank/pkg/metrics"
)

var (
	ErrNonPositiveCount = errors.New("question count must be positive")
	// ErrPageBudgetExhausted is returned when Options.MaxPages pages were
	// fetched without reaching the requested count.
	ErrPageBudgetExhausted = errors.New("page budget exhausted")
)

// PageSource returns up to count raw question objects.
type PageSource interface {
	FetchPage(ctx context.Context, count int) ([]map[string]any, error)
}

// PageValidator turns a raw page into candidates or rejects it whole.
type PageValidator interface {
	ValidatePage(raw []map[string]any) ([]question.Candidate, error)
}

// Archiver keeps a copy of a rejected page and returns where it went.
type Archiver interface {
	ArchiveRejectedPage(ctx context.Context, runID string, page []map[string]any, reason error) (string, error)
}

// Options tunes a Service. The zero value is usable.
type Options struct {
	// MaxPages caps the pages fetched per call; zero means no cap.
	MaxPages int
	Archiver Archiver
	Runs     runlog.Store
	Now      func() time.Time
}

// Service runs ingestions against one source and store.
type Service struct {
	source    PageSource
	validator PageValidator
	repo      repository.Repository
	opts      Options
}

var log = logger.Named("ingestion")

func NewService(src PageSource, v PageValidator, repo repository.Repository, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{source: src, validator: v, repo: repo, opts: opts}
}

// Ingest stores target new questions and returns the most recent record
// afterwards, or nil if the store is empty. A page that fails validation
// ends the call early without an error.
func (s *Service) Ingest(ctx context.Context, target int) (*question.Record, error) {
	latest, _, err := s.IngestRun(ctx, target)
	return latest, err
}

// IngestRun is Ingest plus the run summary. The run is nil only when target
// is rejected up front.
func (s *Service) IngestRun(ctx context.Context, target int) (*question.Record, *runlog.Run, error) {
	if target <= 0 {
		return nil, nil, ErrNonPositiveCount
	}
	run := &runlog.Run{ID: uuid.NewString(), Requested: target, StartedAt: s.opts.Now().UTC()}
	log.Infof("run %s: ingesting %d questions", run.ID, target)

	err := s.fill(ctx, run, target)
	var latest *question.Record
	if err == nil {
		latest, err = s.repo.MostRecent(ctx)
		if err != nil {
			metrics.Failures.WithLabelValues("latest").Inc()
			err = fmt.Errorf("read latest question: %w", err)
		}
	}

	run.FinishedAt = s.opts.Now().UTC()
	if err != nil {
		run.Error = err.Error()
		log.Errorf("run %s failed after %d accepted: %v", run.ID, run.Accepted, err)
	} else {
		log.Infof("run %s done: accepted=%d duplicates=%d conflicts=%d pages=%d aborted=%t",
			run.ID, run.Accepted, run.Duplicates, run.Conflicts, run.Pages, run.Aborted)
	}
	s.record(run)
	if err != nil {
		return nil, run, err
	}
	return latest, run, nil
}

// fill runs the page loop. remaining is charged a full page up front and
// credited back for every candidate that did not produce a new record.
func (s *Service) fill(ctx context.Context, run *runlog.Run, target int) error {
	remaining := target
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			metrics.Failures.WithLabelValues("canceled").Inc()
			return err
		}
		if s.opts.MaxPages > 0 && run.Pages >= s.opts.MaxPages {
			metrics.Failures.WithLabelValues("budget").Inc()
			return fmt.Errorf("%w: %d pages, %d still needed", ErrPageBudgetExhausted, run.Pages, remaining)
		}

		pageSize := min(remaining, source.MaxPageSize)
		raw, err := s.source.FetchPage(ctx, pageSize)
		run.Pages++
		metrics.PagesFetched.Inc()
		if err != nil {
			if errors.Is(err, source.ErrMalformedPage) {
				s.abort(ctx, run, nil, err)
				return nil
			}
			metrics.Failures.WithLabelValues("fetch").Inc()
			return fmt.Errorf("fetch page: %w", err)
		}

		candidates, err := s.validator.ValidatePage(raw)
		if err != nil {
			var pve *question.PageValidationError
			if errors.As(err, &pve) {
				s.abort(ctx, run, raw, err)
				return nil
			}
			metrics.Failures.WithLabelValues("validate").Inc()
			return fmt.Errorf("validate page: %w", err)
		}
		if len(candidates) > pageSize {
			candidates = candidates[:pageSize]
		}

		remaining -= pageSize
		remaining += pageSize - len(candidates)
		if len(candidates) < pageSize {
			log.Debugf("run %s: short page, asked %d got %d", run.ID, pageSize, len(candidates))
		}

		for _, c := range candidates {
			exists, err := s.repo.Exists(ctx, c.Question, c.Answer)
			if err != nil {
				metrics.Failures.WithLabelValues("lookup").Inc()
				return fmt.Errorf("check uniqueness: %w", err)
			}
			if exists {
				remaining++
				run.Duplicates++
				metrics.Candidates.WithLabelValues("duplicate").Inc()
				continue
			}
			res, err := s.repo.Insert(ctx, c.Question, c.Answer, s.opts.Now())
			if err != nil {
				metrics.Failures.WithLabelValues("insert").Inc()
				return fmt.Errorf("store question: %w", err)
			}
			if res.Outcome == question.OutcomeConflict {
				remaining++
				run.Conflicts++
				metrics.Candidates.WithLabelValues("conflict").Inc()
				continue
			}
			run.Accepted++
			metrics.Candidates.WithLabelValues("accepted").Inc()
		}
	}
	return nil
}

// abort marks the run as ended by a bad page and archives the page if it
// could be decoded at all.
func (s *Service) abort(ctx context.Context, run *runlog.Run, raw []map[string]any, cause error) {
	run.Aborted = true
	run.AbortCause = cause.Error()
	metrics.PagesRejected.Inc()
	log.Warnf("run %s: rejected page after %d accepted: %v", run.ID, run.Accepted, cause)

	if s.opts.Archiver == nil || raw == nil {
		return
	}
	key, err := s.opts.Archiver.ArchiveRejectedPage(ctx, run.ID, raw, cause)
	if err != nil {
		log.Warnf("run %s: archive rejected page: %v", run.ID, err)
		return
	}
	run.ArchiveKey = key
}

func (s *Service) record(run *runlog.Run) {
	if s.opts.Runs == nil {
		return
	}
	// the caller's context may already be canceled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.Runs.Save(ctx, run); err != nil {
		log.Warnf("run %s: save summary: %v", run.ID, err)
	}
}

// Latest returns the most recently accepted question, or nil.
func (s *Service) Latest(ctx context.Context) (*question.Record, error) {
	return s.repo.MostRecent(ctx)
}

// Run loads a stored run summary.
func (s *Service) Run(ctx context.Context, id string) (*runlog.Run, error) {
	if s.opts.Runs == nil {
		return nil, runlog.ErrNotFound
	}
	return s.opts.Runs.Load(ctx, id)
}
