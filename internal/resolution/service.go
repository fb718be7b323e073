// Package resolution runs admin actions against stored disputes: status
// changes, split previews, final rulings and the derived queue views.
package resolution

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marketplace/adminpanel/internal/cache"
	"github.com/marketplace/adminpanel/internal/dispute"
	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/repository"
)

const statsCacheKey = cache.DisputeStatsKey

// Cache is the subset of cache.RedisCache the service needs.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	disputes *repository.DisputeRepo
	escrow   *repository.EscrowRepo
	cache    Cache
	log      logrus.FieldLogger
	nowFn    func() time.Time
	topLimit int
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(nowFn func() time.Time) Option {
	return func(s *Service) { s.nowFn = nowFn }
}

func WithTopUrgentLimit(n int) Option {
	return func(s *Service) { s.topLimit = n }
}

func NewService(disputes *repository.DisputeRepo, escrow *repository.EscrowRepo, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		disputes: disputes,
		escrow:   escrow,
		log:      log.WithField("component", "resolution"),
		nowFn:    time.Now,
		topLimit: dispute.DefaultTopUrgentLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Item is a dispute with its derived fields as of the time it was loaded.
type Item struct {
	domain.Dispute
	View dispute.View `json:"view"`
}

type Detail struct {
	Item
	History []domain.StatusChange `json:"history"`
}

func (s *Service) item(d domain.Dispute, now time.Time) Item {
	return Item{Dispute: d, View: dispute.Derive(d, now)}
}

func (s *Service) items(ds []domain.Dispute, now time.Time) []Item {
	out := make([]Item, len(ds))
	for i, d := range ds {
		out[i] = s.item(d, now)
	}
	return out
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	d, err := s.disputes.GetByID(id)
	if err != nil {
		return nil, err
	}
	history, err := s.disputes.History(id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if history == nil {
		history = []domain.StatusChange{}
	}
	return &Detail{Item: s.item(*d, s.nowFn()), History: history}, nil
}

const (
	SortUrgency  = "urgency"
	SortDeadline = "deadline"
	SortAmount   = "amount"
)

// List returns one page of disputes in the requested order. Deadline order
// is paged by the store; urgency and amount are computed here.
func (s *Service) List(ctx context.Context, f repository.DisputeFilter, sortBy string) ([]Item, int, error) {
	now := s.nowFn()

	switch sortBy {
	case "", SortDeadline:
		ds, total, err := s.disputes.List(f)
		if err != nil {
			return nil, 0, err
		}
		return s.items(ds, now), total, nil
	case SortUrgency, SortAmount:
	default:
		return nil, 0, domain.NewFieldError(domain.ErrInvalidField, "sort", fmt.Sprintf("unknown sort %q", sortBy))
	}

	ds, err := s.disputes.ListAll(f)
	if err != nil {
		return nil, 0, err
	}
	if sortBy == SortUrgency {
		ds = dispute.SortByUrgency(ds, now)
	} else {
		slices.SortStableFunc(ds, func(a, b domain.Dispute) int {
			return b.AmountInDispute.Cmp(a.AmountInDispute)
		})
	}
	return s.items(paginate(ds, f.Page, f.Limit), now), len(ds), nil
}

func paginate(ds []domain.Dispute, page, limit int) []domain.Dispute {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(ds) {
		return []domain.Dispute{}
	}
	end := min(start+limit, len(ds))
	return ds[start:end]
}

// Urgent returns the disputes an admin should look at first. A limit of zero
// uses the configured default.
func (s *Service) Urgent(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = s.topLimit
	}
	ds, err := s.disputes.ListAll(repository.DisputeFilter{})
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	return s.items(dispute.SelectTopUrgent(ds, now, limit), now), nil
}

// Stats aggregates the queue. Results are cached when a cache is configured;
// cache failures fall through to the store.
func (s *Service) Stats(ctx context.Context) (dispute.Stats, error) {
	var stats dispute.Stats
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, statsCacheKey, &stats)
		if err != nil {
			s.log.WithError(err).Warn("stats cache read failed")
		}
		if hit {
			return stats, nil
		}
	}

	ds, err := s.disputes.ListAll(repository.DisputeFilter{})
	if err != nil {
		return stats, err
	}
	stats = dispute.AggregateStats(ds, s.nowFn())

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats); err != nil {
			s.log.WithError(err).Warn("stats cache write failed")
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.log.WithError(err).Warn("stats cache invalidation failed")
	}
}

// ChangeStatus moves a dispute along its lifecycle. Repeating the current
// status returns the dispute unchanged and writes no history.
func (s *Service) ChangeStatus(ctx context.Context, id string, to domain.DisputeStatus, actor, reason string) (*domain.Dispute, error) {
	d, err := s.disputes.GetByID(id)
	if err != nil {
		return nil, err
	}
	next, err := dispute.Transition(*d, to)
	if err != nil {
		return nil, err
	}
	if next.Status == d.Status {
		return d, nil
	}

	if err := s.disputes.UpdateStatus(id, d.Status, next.Status, actor, reason, s.nowFn()); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	s.log.WithFields(logrus.Fields{
		"dispute_id": id,
		"from":       d.Status,
		"to":         next.Status,
		"actor":      actor,
	}).Info("dispute status changed")
	return &next, nil
}

// Preview is what the decision form shows before submission.
type Preview struct {
	Gate  dispute.Gate  `json:"gate"`
	Split *domain.Split `json:"split,omitempty"`
}

// PreviewSplit computes the payout for a decision without persisting it. The
// split is shown whenever it can be computed, even while the gate is closed.
// A split with no percentage entered yet has nothing to show.
func (s *Service) PreviewSplit(ctx context.Context, id string, decision domain.Decision) (*Preview, error) {
	d, err := s.disputes.GetByID(id)
	if err != nil {
		return nil, err
	}
	p := &Preview{Gate: dispute.CanFinalizeFor(*d, decision)}
	if decision.Type == domain.DecisionSplit && decision.Percentage == nil {
		return p, nil
	}
	if split, err := dispute.ComputeSplit(d.AmountInDispute, decision.Type, decision.SplitPercentage()); err == nil {
		p.Split = &split
	}
	return p, nil
}

// Resolve finalizes a ruling, stores it and settles the linked escrow
// payment.
func (s *Service) Resolve(ctx context.Context, id string, decision domain.Decision, actor string) (*domain.Dispute, error) {
	d, err := s.disputes.GetByID(id)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	resolved, err := dispute.Resolve(*d, decision, actor, now)
	if err != nil {
		return nil, err
	}
	if err := s.disputes.SaveResolution(&resolved, d.Status, "ruling: "+string(decision.Type)); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	entry := s.log.WithFields(logrus.Fields{
		"dispute_id":        id,
		"type":              decision.Type,
		"influencer_amount": resolved.Resolution.InfluencerAmount.String(),
		"business_amount":   resolved.Resolution.BusinessAmount.String(),
		"actor":             actor,
	})
	entry.Info("dispute resolved")

	if resolved.EscrowID != "" {
		status := decision.Type.EscrowOutcome()
		if err := s.escrow.UpdateStatus(resolved.EscrowID, status, now); err != nil {
			// The ruling stands; the payment can be settled by hand.
			entry.WithError(err).WithField("escrow_id", resolved.EscrowID).Warn("escrow status not updated")
		}
	}
	return &resolved, nil
}

// PostMessage appends a message to an open dispute's thread.
func (s *Service) PostMessage(ctx context.Context, id string, author domain.Role, body string) (*domain.Message, error) {
	if !author.Valid() {
		return nil, domain.NewFieldError(domain.ErrInvalidField, "author", string(author))
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.NewFieldError(domain.ErrMissingField, "body", "")
	}

	d, err := s.disputes.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !dispute.IsOpen(*d) {
		return nil, domain.ErrDisputeResolved
	}

	m := domain.Message{
		ID:     uuid.NewString(),
		Author: author,
		Body:   body,
		SentAt: s.nowFn(),
	}
	if err := s.disputes.AddMessage(id, m); err != nil {
		return nil, err
	}
	return &m, nil
}

type Dashboard struct {
	Stats  dispute.Stats             `json:"stats"`
	Urgent []Item                    `json:"urgent"`
	Escrow *repository.EscrowSummary `json:"escrow"`
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	urgent, err := s.Urgent(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("urgent: %w", err)
	}
	summary, err := s.escrow.Summary()
	if err != nil {
		return nil, fmt.Errorf("escrow summary: %w", err)
	}
	return &Dashboard{Stats: stats, Urgent: urgent, Escrow: summary}, nil
}
