package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Truenya/caldav-daemon/internal/domain"
	"github.com/Truenya/caldav-daemon/internal/flatten"
	"github.com/Truenya/caldav-daemon/internal/storage"
)

// pruneAfter is how long past events are remembered
const pruneAfter = 24 * time.Hour

type RecordSource interface {
	Records(ctx context.Context) ([]flatten.Record, bool, error)
}

type Notifier interface {
	Notify(e *domain.CalendarEvent) error
}

type Options struct {
	RefreshPeriod time.Duration
	NotifyBefore  time.Duration
	ServerOffset  time.Duration
	Timezone      *time.Location
}

type Scheduler struct {
	cron     *cron.Cron
	opts     Options
	source   RecordSource
	storage  *storage.Storage
	notifier Notifier
	now      func() time.Time

	ctx      context.Context
	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopped  bool
	inflight sync.WaitGroup
}

func New(source RecordSource, storage *storage.Storage, notifier Notifier, opts Options) *Scheduler {
	if opts.Timezone == nil {
		opts.Timezone = time.Local
	}

	c := cron.New(
		cron.WithLocation(opts.Timezone),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &Scheduler{
		cron:     c,
		opts:     opts,
		source:   source,
		storage:  storage,
		notifier: notifier,
		now:      time.Now,
		ctx:      context.Background(),
		pending:  make(map[string]*time.Timer),
	}
}

// Start refreshes once, then every RefreshPeriod until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	spec := fmt.Sprintf("@every %s", s.opts.RefreshPeriod)
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return fmt.Errorf("add refresh: %w", err)
	}

	s.refresh()
	s.cron.Start()
	log.Printf("Scheduler started (refresh: %s, notify before: %s)", s.opts.RefreshPeriod, s.opts.NotifyBefore)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	s.stopped = true
	for key, t := range s.pending {
		t.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	// deliveries that already fired still use the storage
	s.inflight.Wait()

	log.Println("Scheduler stopped")
}

func (s *Scheduler) refresh() {
	records, _, err := s.source.Records(s.ctx)
	if err != nil {
		log.Printf("Error fetching events: %v", err)
		return
	}

	events := make([]*domain.CalendarEvent, 0, len(records))
	for _, rec := range records {
		e, err := domain.EventFromRecord(rec, s.opts.Timezone, s.opts.ServerOffset)
		if err != nil {
			log.Printf("Error parsing event %+v: %v", rec, err)
			continue
		}
		events = append(events, e)
	}

	s.plan(events)

	if n, err := s.storage.PruneBefore(s.now().Add(-pruneAfter)); err != nil {
		log.Printf("Error pruning planned events: %v", err)
	} else if n > 0 {
		log.Printf("Pruned %d past events", n)
	}
}

func (s *Scheduler) plan(events []*domain.CalendarEvent) {
	now := s.now()

	for _, e := range events {
		if e.IsPast(now) {
			if e.IsToday(now) {
				log.Printf("Skipping past event: %s at %s", e.Summary, e.StartTime)
			}
			continue
		}

		key := e.Key()
		if s.isPending(key) {
			continue
		}

		at, err := s.storage.NotifiedAt(key)
		if err != nil {
			log.Printf("Error checking event %s: %v", key, err)
			continue
		}
		if at != nil {
			continue
		}

		planned, err := s.storage.IsPlanned(key)
		if err != nil {
			log.Printf("Error checking event %s: %v", key, err)
			continue
		}
		if !planned {
			if err := s.storage.MarkPlanned(key, e.Summary, e.StartTime); err != nil {
				log.Printf("Error planning event %s: %v", key, err)
				continue
			}
		}

		delay := e.StartTime.Sub(now) - s.opts.NotifyBefore
		if delay < 0 {
			delay = 0
		}
		s.schedule(key, e, delay)
		log.Printf("Planned event: %s at %s (in %s)", e.Summary, e.StartTime, delay)
	}
}

func (s *Scheduler) isPending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// PendingCount returns the number of notifications waiting for their time
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) schedule(key string, e *domain.CalendarEvent, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.inflight.Add(1)
		s.mu.Unlock()

		defer s.inflight.Done()
		s.deliver(key, e)
	})
}

func (s *Scheduler) deliver(key string, e *domain.CalendarEvent) {
	if err := s.notifier.Notify(e); err != nil {
		log.Printf("Error notifying event %s: %v", key, err)
	} else if err := s.storage.MarkNotified(key, s.now()); err != nil {
		log.Printf("Error marking event %s as notified: %v", key, err)
	}

	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}
