package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/txauth/internal/models"
	"go.uber.org/zap"
)

// ScheduledTransaction repeats a request every IntervalDays starting on NextRun.
type ScheduledTransaction struct {
	mu           sync.Mutex
	id           string
	request      TransactionRequest
	nextRun      time.Time
	intervalDays int
}

// NewScheduledTransaction schedules req on firstRun and every intervalDays after.
func NewScheduledTransaction(req TransactionRequest, firstRun time.Time, intervalDays int) (*ScheduledTransaction, error) {
	if intervalDays < 1 {
		return nil, fmt.Errorf("interval must be at least one day, got %d", intervalDays)
	}
	if req.Source == nil {
		return nil, errors.New("scheduled transaction needs a source account")
	}
	return &ScheduledTransaction{
		id:           uuid.NewString(),
		request:      req,
		nextRun:      firstRun,
		intervalDays: intervalDays,
	}, nil
}

func (st *ScheduledTransaction) ID() string { return st.id }

func (st *ScheduledTransaction) NextRun() time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.nextRun
}

// RunIfDue hands the request to svc when day has reached the next run date
// and moves the next run forward by one interval. The outcome does not
// affect the schedule.
func (st *ScheduledTransaction) RunIfDue(ctx context.Context, day time.Time, svc *TransactionService) (TransactionResult, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if dateOf(day).Before(dateOf(st.nextRun)) {
		return TransactionResult{}, false
	}
	result := svc.Handle(ctx, st.request)
	st.nextRun = st.nextRun.AddDate(0, 0, st.intervalDays)
	return result, true
}

// ScheduleView is the read model of a scheduled transaction.
type ScheduleView struct {
	ID           string                 `json:"id"`
	Type         models.TransactionType `json:"type"`
	SourceID     string                 `json:"sourceAccountId"`
	TargetID     string                 `json:"targetAccountId,omitempty"`
	Amount       string                 `json:"amount"`
	InitiatorID  string                 `json:"initiatorId"`
	NextRun      time.Time              `json:"nextRun"`
	IntervalDays int                    `json:"intervalDays"`
}

func (st *ScheduledTransaction) View() ScheduleView {
	st.mu.Lock()
	defer st.mu.Unlock()
	view := ScheduleView{
		ID:           st.id,
		Type:         st.request.Type,
		SourceID:     st.request.Source.ID(),
		Amount:       st.request.Amount.StringFixed(2),
		InitiatorID:  st.request.Initiator.ID,
		NextRun:      st.nextRun,
		IntervalDays: st.intervalDays,
	}
	if st.request.Target != nil {
		view.TargetID = st.request.Target.ID()
	}
	return view
}

// Scheduler checks its scheduled transactions on every tick.
type Scheduler struct {
	svc      *TransactionService
	interval time.Duration
	logger   *zap.Logger
	audit    *AuditLogger

	mu   sync.Mutex
	jobs []*ScheduledTransaction
}

// NewScheduler creates a scheduler ticking every interval.
func NewScheduler(svc *TransactionService, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger.Named("scheduler"),
		audit:    NewAuditLogger(logger),
	}
}

func (s *Scheduler) Add(st *ScheduledTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, st)
}

func (s *Scheduler) List() []ScheduleView {
	s.mu.Lock()
	jobs := append([]*ScheduledTransaction(nil), s.jobs...)
	s.mu.Unlock()

	views := make([]ScheduleView, 0, len(jobs))
	for _, st := range jobs {
		views = append(views, st.View())
	}
	return views
}

// Tick runs every job due on the ledger's current day and reports how many ran.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.mu.Lock()
	jobs := append([]*ScheduledTransaction(nil), s.jobs...)
	s.mu.Unlock()

	today := s.svc.Ledger().now()
	ran := 0
	for _, st := range jobs {
		result, ok := st.RunIfDue(ctx, today, s.svc)
		if !ok {
			continue
		}
		ran++
		details := fmt.Sprintf("record %s success=%t next run %s",
			result.Record.ID, result.Record.Success, st.NextRun().Format(time.DateOnly))
		s.audit.LogOperation(st.ID(), result.Record.SourceID, "SCHEDULED_RUN", details)
	}
	return ran
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if n := s.Tick(ctx); n > 0 {
				s.logger.Info("scheduled transactions run", zap.Int("count", n))
			}
		}
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
