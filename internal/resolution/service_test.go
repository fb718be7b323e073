package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/logger"
	"github.com/marketplace/adminpanel/internal/repository"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const reasoning = "Both sides delivered part of what the brief asked for."

type memCache struct {
	data    map[string][]byte
	getErr  error
	deletes int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dest any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

type fixture struct {
	svc      *Service
	disputes *repository.DisputeRepo
	escrow   *repository.EscrowRepo
	cache    *memCache
}

func newFixture(t *testing.T, disputes ...domain.Dispute) fixture {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := fixture{
		disputes: repository.NewDisputeRepo(db),
		escrow:   repository.NewEscrowRepo(db),
		cache:    newMemCache(),
	}
	_, err = f.disputes.BulkInsert(disputes)
	require.NoError(t, err)

	f.svc = NewService(f.disputes, f.escrow, logger.Discard(),
		WithCache(f.cache),
		WithClock(func() time.Time { return now }),
	)
	return f
}

func newDispute(id string, status domain.DisputeStatus, priority domain.Priority, hours int, amount int64) domain.Dispute {
	return domain.Dispute{
		ID:              id,
		CampaignID:      "CMP-" + id,
		CampaignTitle:   "Campaign " + id,
		EscrowID:        "ESC-CMP-" + id,
		Business:        domain.Party{ID: "B1", Name: "Nakheel Coffee"},
		Influencer:      domain.Party{ID: "I1", Name: "Sara Alqahtani"},
		Status:          status,
		Priority:        priority,
		Category:        domain.CategoryContentQuality,
		AmountInDispute: decimal.NewFromInt(amount),
		OpenedAt:        now.Add(-72 * time.Hour),
		Deadline:        now.Add(time.Duration(hours) * time.Hour),
	}
}

func disputedPayment(id string) domain.EscrowPayment {
	return domain.EscrowPayment{
		ID:             id,
		CampaignID:     "CMP",
		CampaignTitle:  "Campaign",
		BusinessName:   "Nakheel Coffee",
		InfluencerName: "Sara Alqahtani",
		SourceAmount:   decimal.NewFromInt(6000),
		SourceCurrency: "SAR",
		Breakdown: domain.FinancialBreakdown{
			NetToInfluencer: decimal.NewFromInt(6000),
			Commission:      decimal.RequireFromString("185.57"),
			VAT:             decimal.RequireFromString("27.84"),
			TotalPaid:       decimal.RequireFromString("6213.41"),
		},
		Status:    domain.EscrowDisputed,
		CreatedAt: now.Add(-96 * time.Hour),
		UpdatedAt: now.Add(-96 * time.Hour),
	}
}

func itemIDs(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestChangeStatusWritesHistory(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusNew, domain.PriorityHigh, 50, 1000))
	ctx := context.Background()

	d, err := f.svc.ChangeStatus(ctx, "D1", domain.StatusEvidence, "admin-2", "need proof")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEvidence, d.Status)

	detail, err := f.svc.Get(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEvidence, detail.Status)
	require.Len(t, detail.History, 1)
	assert.Equal(t, "admin-2", detail.History[0].ChangedBy)
	assert.Equal(t, 1, f.cache.deletes, "stats invalidated")
}

func TestChangeStatusSameStatusIsNoop(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusReview, domain.PriorityHigh, 50, 1000))

	d, err := f.svc.ChangeStatus(context.Background(), "D1", domain.StatusReview, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReview, d.Status)

	history, err := f.disputes.History("D1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChangeStatusRejectsIllegalMoves(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusNew, domain.PriorityHigh, 50, 1000))
	ctx := context.Background()

	_, err := f.svc.ChangeStatus(ctx, "D1", domain.StatusReview, "admin", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.ChangeStatus(ctx, "D1", domain.StatusResolved, "admin", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "resolving needs a decision")

	_, err = f.svc.ChangeStatus(ctx, "missing", domain.StatusEvidence, "admin", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPreviewSplitDoesNotPersist(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusReview, domain.PriorityHigh, 50, 2999))

	p, err := f.svc.PreviewSplit(context.Background(), "D1", domain.Decision{Type: domain.DecisionSplit, Percentage: ptr(33)})
	require.NoError(t, err)
	assert.False(t, p.Gate.Allowed)
	assert.Equal(t, "reasoning_too_short", string(p.Gate.Reason))
	require.NotNil(t, p.Split)
	assert.Equal(t, "990", p.Split.InfluencerAmount.String())
	assert.Equal(t, "2009", p.Split.BusinessAmount.String())

	d, err := f.disputes.GetByID("D1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReview, d.Status)
	assert.Nil(t, d.Resolution)

	p, err = f.svc.PreviewSplit(context.Background(), "D1", domain.Decision{Type: "coin_flip"})
	require.NoError(t, err)
	assert.Nil(t, p.Split)
	assert.Equal(t, "invalid_type", string(p.Gate.Reason))
}

func TestResolveSettlesEscrow(t *testing.T) {
	tests := []struct {
		decision domain.Decision
		want     domain.EscrowStatus
	}{
		{domain.Decision{Type: domain.DecisionInfluencer}, domain.EscrowReleased},
		{domain.Decision{Type: domain.DecisionBusiness}, domain.EscrowRefunded},
		{domain.Decision{Type: domain.DecisionSplit, Percentage: ptr(60)}, domain.EscrowSplit},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision.Type), func(t *testing.T) {
			f := newFixture(t, newDispute("D1", domain.StatusReview, domain.PriorityHigh, 50, 5000))
			require.NoError(t, f.escrow.Insert(ptr(disputedPayment("ESC-CMP-D1"))))

			dec := tt.decision
			dec.Reasoning = reasoning
			dec.Reviewed = true
			dec.Understand = true

			d, err := f.svc.Resolve(context.Background(), "D1", dec, "admin-9")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusResolved, d.Status)
			require.NotNil(t, d.Resolution)
			assert.True(t, d.Resolution.InfluencerAmount.Add(d.Resolution.BusinessAmount).Equal(decimal.NewFromInt(5000)))

			stored, err := f.disputes.GetByID("D1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusResolved, stored.Status)
			require.NotNil(t, stored.Resolution)
			assert.Equal(t, "admin-9", stored.Resolution.ResolvedBy)

			p, err := f.escrow.GetByID("ESC-CMP-D1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Status)
		})
	}
}

func TestResolveWithoutEscrowStillSucceeds(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusEscalated, domain.PriorityHigh, 50, 5000))
	dec := domain.Decision{Type: domain.DecisionBusiness, Reasoning: reasoning, Reviewed: true, Understand: true}

	d, err := f.svc.Resolve(context.Background(), "D1", dec, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, d.Status)
}

func TestResolveGateAndTerminality(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusReview, domain.PriorityHigh, 50, 5000))
	ctx := context.Background()

	_, err := f.svc.Resolve(ctx, "D1", domain.Decision{Type: domain.DecisionInfluencer, Reasoning: "too short"}, "admin")
	require.ErrorIs(t, err, domain.ErrGateClosed)
	assert.Contains(t, err.Error(), "reasoning_too_short")

	dec := domain.Decision{Type: domain.DecisionInfluencer, Reasoning: reasoning, Reviewed: true, Understand: true}
	_, err = f.svc.Resolve(ctx, "D1", dec, "admin")
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, "D1", dec, "admin")
	assert.ErrorIs(t, err, domain.ErrDisputeResolved)

	_, err = f.svc.ChangeStatus(ctx, "D1", domain.StatusEscalated, "admin", "")
	assert.ErrorIs(t, err, domain.ErrDisputeResolved)

	_, err = f.svc.PostMessage(ctx, "D1", domain.RoleAdmin, "reopening?")
	assert.ErrorIs(t, err, domain.ErrDisputeResolved)
}

func TestPostMessage(t *testing.T) {
	f := newFixture(t, newDispute("D1", domain.StatusEvidence, domain.PriorityHigh, 50, 5000))
	ctx := context.Background()

	m, err := f.svc.PostMessage(ctx, "D1", domain.RoleBusiness, "  Draft attached.  ")
	require.NoError(t, err)
	assert.Equal(t, "Draft attached.", m.Body)
	assert.True(t, now.Equal(m.SentAt))

	_, err = f.svc.PostMessage(ctx, "D1", "agency", "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidField)

	_, err = f.svc.PostMessage(ctx, "D1", domain.RoleAdmin, "   ")
	assert.ErrorIs(t, err, domain.ErrMissingField)

	detail, err := f.svc.Get(ctx, "D1")
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 1)
}

func TestListSorts(t *testing.T) {
	f := newFixture(t,
		newDispute("A", domain.StatusNew, domain.PriorityLow, 10, 500),
		newDispute("B", domain.StatusNew, domain.PriorityCritical, 100, 9000),
		newDispute("C", domain.StatusNew, domain.PriorityHigh, 5, 3000),
	)
	ctx := context.Background()

	items, total, err := f.svc.List(ctx, repository.DisputeFilter{}, SortDeadline)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"C", "A", "B"}, itemIDs(items))

	items, _, err = f.svc.List(ctx, repository.DisputeFilter{}, SortUrgency)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, itemIDs(items))

	items, total, err = f.svc.List(ctx, repository.DisputeFilter{Limit: 2, Page: 2}, SortAmount)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"A"}, itemIDs(items))

	items, _, err = f.svc.List(ctx, repository.DisputeFilter{}, "")
	require.NoError(t, err)
	assert.Equal(t, 5, items[0].View.HoursRemaining)
	assert.True(t, items[0].View.Urgent)

	_, _, err = f.svc.List(ctx, repository.DisputeFilter{}, "random")
	assert.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestUrgentUsesDefaultLimit(t *testing.T) {
	f := newFixture(t,
		newDispute("A", domain.StatusNew, domain.PriorityLow, 10, 500),
		newDispute("B", domain.StatusNew, domain.PriorityCritical, 100, 9000),
		newDispute("C", domain.StatusNew, domain.PriorityHigh, 5, 3000),
		newDispute("D", domain.StatusNew, domain.PriorityMedium, 200, 3000),
	)

	items, err := f.svc.Urgent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, itemIDs(items))

	items, err = f.svc.Urgent(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, itemIDs(items))
}

func TestStatsCacheThrough(t *testing.T) {
	resolved := newDispute("R", domain.StatusResolved, domain.PriorityLow, 10, 7000)
	resolved.Resolution = &domain.Resolution{ID: "res", Type: domain.DecisionBusiness, ResolvedBy: "a", ResolvedAt: now}
	f := newFixture(t,
		newDispute("A", domain.StatusNew, domain.PriorityHigh, 24, 5000),
		newDispute("B", domain.StatusEvidence, domain.PriorityMedium, 100, 3000),
		newDispute("C", domain.StatusReview, domain.PriorityLow, 71, 3000),
		newDispute("D", domain.StatusEscalated, domain.PriorityCritical, 5, 0),
		resolved,
	)
	ctx := context.Background()

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalOpen)
	assert.Equal(t, 1, stats.AwaitingEvidence)
	assert.Equal(t, 3, stats.DecisionDue)
	assert.Equal(t, "11000", stats.ValueAtStake.String())
	assert.Contains(t, f.cache.data, statsCacheKey)

	// A hit is served from the cache even if the store changes underneath.
	require.NoError(t, f.disputes.Insert(ptr(newDispute("E", domain.StatusNew, domain.PriorityLow, 300, 100))))
	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalOpen)

	f.cache.getErr = errors.New("connection refused")
	stats, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalOpen, "cache errors fall through to the store")
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, newDispute("A", domain.StatusNew, domain.PriorityCritical, 10, 500))
	require.NoError(t, f.escrow.Insert(ptr(disputedPayment("ESC-CMP-A"))))

	dash, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Stats.TotalOpen)
	assert.Equal(t, []string{"A"}, itemIDs(dash.Urgent))
	assert.Equal(t, 1, dash.Escrow.TotalCount)
	assert.Equal(t, "6213.41", dash.Escrow.Disputed.StringFixed(2))
}

func ptr[T any](v T) *T { return &v }
