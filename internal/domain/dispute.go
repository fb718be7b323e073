package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DisputeStatus string

const (
	StatusNew       DisputeStatus = "new"
	StatusEvidence  DisputeStatus = "evidence"
	StatusReview    DisputeStatus = "review"
	StatusEscalated DisputeStatus = "escalated"
	StatusResolved  DisputeStatus = "resolved"
)

func (s DisputeStatus) Valid() bool {
	switch s {
	case StatusNew, StatusEvidence, StatusReview, StatusEscalated, StatusResolved:
		return true
	}
	return false
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type Category string

const (
	CategoryContentQuality  Category = "content_quality"
	CategoryMissedDeadline  Category = "missed_deadline"
	CategoryRequirementsGap Category = "requirements_not_met"
	CategoryPayment         Category = "payment"
	CategoryCommunication   Category = "communication"
	CategoryOther           Category = "other"
)

// Role identifies who authored a message or uploaded evidence.
type Role string

const (
	RoleBusiness   Role = "business"
	RoleInfluencer Role = "influencer"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleBusiness || r == RoleInfluencer || r == RoleAdmin
}

type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Requirement struct {
	Label string `json:"label"`
	Met   bool   `json:"met"`
}

type Evidence struct {
	ID         string    `json:"id"`
	UploadedBy Role      `json:"uploaded_by"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Message struct {
	ID     string    `json:"id"`
	Author Role      `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Dispute is a conflict between a business and an influencer over one campaign.
type Dispute struct {
	ID              string          `json:"id"`
	CampaignID      string          `json:"campaign_id"`
	CampaignTitle   string          `json:"campaign_title"`
	EscrowID        string          `json:"escrow_id,omitempty"`
	Business        Party           `json:"business"`
	Influencer      Party           `json:"influencer"`
	Status          DisputeStatus   `json:"status"`
	Priority        Priority        `json:"priority"`
	Category        Category        `json:"category"`
	Summary         string          `json:"summary"`
	AmountInDispute decimal.Decimal `json:"amount_in_dispute"`
	OpenedAt        time.Time       `json:"opened_at"`
	Deadline        time.Time       `json:"deadline"`
	Requirements    []Requirement   `json:"requirements"`
	Evidence        []Evidence      `json:"evidence"`
	Messages        []Message       `json:"messages"`
	Resolution      *Resolution     `json:"resolution,omitempty"`
}

type DecisionType string

const (
	DecisionInfluencer DecisionType = "influencer"
	DecisionSplit      DecisionType = "split"
	DecisionBusiness   DecisionType = "business"
)

// EscrowOutcome is the status the campaign payment moves to once a ruling
// of this type is final.
func (t DecisionType) EscrowOutcome() EscrowStatus {
	switch t {
	case DecisionInfluencer:
		return EscrowReleased
	case DecisionBusiness:
		return EscrowRefunded
	default:
		return EscrowSplit
	}
}

// Decision is an admin's ruling as entered, before it is finalized.
// Percentage is the influencer's share for a split; nil means not entered.
type Decision struct {
	Type       DecisionType `json:"type"`
	Percentage *int         `json:"percentage,omitempty"`
	Reasoning  string       `json:"reasoning"`
	Reviewed   bool         `json:"reviewed"`
	Understand bool         `json:"understand"`
}

// SplitPercentage returns the entered percentage, or 0 when none was given.
func (d Decision) SplitPercentage() int {
	if d.Percentage == nil {
		return 0
	}
	return *d.Percentage
}

type Split struct {
	InfluencerAmount decimal.Decimal `json:"influencer_amount"`
	BusinessAmount   decimal.Decimal `json:"business_amount"`
}

// Resolution is the finalized, immutable outcome of a dispute.
type Resolution struct {
	ID         string       `json:"id"`
	Type       DecisionType `json:"type"`
	Percentage int          `json:"percentage"`
	Reasoning  string       `json:"reasoning"`
	Split
	ResolvedBy string    `json:"resolved_by"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type StatusChange struct {
	DisputeID string        `json:"dispute_id"`
	From      DisputeStatus `json:"from"`
	To        DisputeStatus `json:"to"`
	ChangedBy string        `json:"changed_by"`
	Reason    string        `json:"reason,omitempty"`
	ChangedAt time.Time     `json:"changed_at"`
}
