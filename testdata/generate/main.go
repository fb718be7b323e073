package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/currency"
	"github.com/marketplace/adminpanel/internal/dispute"
	"github.com/marketplace/adminpanel/internal/domain"
)

const (
	paymentCount = 40
	disputeCount = 14
)

var (
	businesses  = []string{"Nakheel Coffee", "Dune Fitness", "Oud House", "Jeddah Eats", "Bayt Interiors"}
	influencers = []string{"Sara Alqahtani", "Omar Haddad", "Lina Farouk", "Yousef Almutairi", "Noura Saleh", "Faisal Rahman"}
	campaigns   = []string{"Ramadan Launch", "Summer Drop", "Store Opening", "Product Review", "Founding Day Promo"}
	currencies  = []string{"SAR", "SAR", "SAR", "AED", "USD"}
	categories  = []domain.Category{
		domain.CategoryContentQuality, domain.CategoryMissedDeadline, domain.CategoryRequirementsGap,
		domain.CategoryPayment, domain.CategoryCommunication, domain.CategoryOther,
	}
	priorities = []domain.Priority{domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow}
	openStates = []domain.DisputeStatus{domain.StatusNew, domain.StatusEvidence, domain.StatusReview, domain.StatusEscalated}
)

type paymentRow struct {
	campaignID string
	campaign   string
	business   string
	influencer string
	net        decimal.Decimal
	currency   string
	status     domain.EscrowStatus
	createdAt  time.Time
}

type disputesFile struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Disputes    []domain.Dispute `json:"disputes"`
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()
	now := time.Now().UTC().Truncate(time.Hour)

	rows := make([]paymentRow, paymentCount)
	for i := range rows {
		code := currencies[rng.Intn(len(currencies))]
		// Net between 500 and 25000 in whole units.
		net := decimal.NewFromInt(int64(500 + rng.Intn(24501)))
		rows[i] = paymentRow{
			campaignID: fmt.Sprintf("CMP-%04d", 1001+i),
			campaign:   campaigns[rng.Intn(len(campaigns))],
			business:   businesses[rng.Intn(len(businesses))],
			influencer: influencers[rng.Intn(len(influencers))],
			net:        net,
			currency:   code,
			status:     randomSettledStatus(rng),
			createdAt:  now.AddDate(0, 0, -(10 + rng.Intn(50))),
		}
	}

	var disputes []domain.Dispute
	for i := 0; i < disputeCount; i++ {
		row := &rows[i]
		d := buildDispute(rng, *row, i, now)
		if d.Resolution != nil {
			row.status = d.Resolution.Type.EscrowOutcome()
		} else {
			row.status = domain.EscrowDisputed
		}
		disputes = append(disputes, d)
	}

	writeEscrowCSV(filepath.Join(baseDir, "escrow.csv"), rows)
	fmt.Printf("Generated %d escrow payments -> escrow.csv\n", len(rows))

	writeJSONFile(filepath.Join(baseDir, "disputes.json"), disputesFile{GeneratedAt: now, Disputes: disputes})
	fmt.Printf("Generated %d disputes -> disputes.json\n", len(disputes))

	fmt.Println("Test data generation complete.")
}

func randomSettledStatus(rng *rand.Rand) domain.EscrowStatus {
	roll := rng.Float64()
	switch {
	case roll < 0.6:
		return domain.EscrowHeld
	case roll < 0.9:
		return domain.EscrowReleased
	default:
		return domain.EscrowRefunded
	}
}

func buildDispute(rng *rand.Rand, row paymentRow, i int, now time.Time) domain.Dispute {
	sar, err := currency.ToSAR(row.net, row.currency)
	if err != nil {
		panic(err)
	}

	opened := now.Add(-time.Duration(24+rng.Intn(24*6)) * time.Hour)
	// Deadlines range from 12 hours overdue to four days out.
	deadline := now.Add(time.Duration(rng.Intn(24*4+12)-12) * time.Hour)
	if deadline.Before(opened) {
		deadline = opened.Add(24 * time.Hour)
	}

	d := domain.Dispute{
		ID:              fmt.Sprintf("DSP-%03d", i+1),
		CampaignID:      row.campaignID,
		CampaignTitle:   row.campaign,
		EscrowID:        "ESC-" + row.campaignID,
		Business:        domain.Party{ID: fmt.Sprintf("BUS-%02d", rng.Intn(90)+10), Name: row.business},
		Influencer:      domain.Party{ID: fmt.Sprintf("INF-%02d", rng.Intn(90)+10), Name: row.influencer},
		Status:          openStates[rng.Intn(len(openStates))],
		Priority:        priorities[rng.Intn(len(priorities))],
		Category:        categories[rng.Intn(len(categories))],
		Summary:         fmt.Sprintf("%s disputes the deliverables for %s.", row.business, row.campaign),
		AmountInDispute: sar,
		OpenedAt:        opened,
		Deadline:        deadline,
		Requirements: []domain.Requirement{
			{Label: "Two feed posts", Met: rng.Intn(2) == 0},
			{Label: "Brand hashtag in caption", Met: true},
			{Label: "Story with link sticker", Met: rng.Intn(3) > 0},
		},
		Evidence: []domain.Evidence{
			{
				ID:         fmt.Sprintf("EV-%03d-1", i+1),
				UploadedBy: domain.RoleBusiness,
				Type:       "screenshot",
				Name:       "post_metrics.png",
				UploadedAt: opened.Add(2 * time.Hour),
			},
			{
				ID:         fmt.Sprintf("EV-%03d-2", i+1),
				UploadedBy: domain.RoleInfluencer,
				Type:       "link",
				Name:       "published_story",
				URL:        "https://example.com/story/" + row.campaignID,
				UploadedAt: opened.Add(5 * time.Hour),
			},
		},
		Messages: []domain.Message{
			{ID: fmt.Sprintf("MSG-%03d-1", i+1), Author: domain.RoleBusiness, Body: "The posts went live after the agreed date.", SentAt: opened.Add(time.Hour)},
			{ID: fmt.Sprintf("MSG-%03d-2", i+1), Author: domain.RoleInfluencer, Body: "The brief was approved late, I posted within a day.", SentAt: opened.Add(3 * time.Hour)},
		},
	}

	// Every fifth dispute is already resolved.
	if i%5 == 4 {
		d.Status = domain.StatusResolved
		types := []domain.DecisionType{domain.DecisionInfluencer, domain.DecisionSplit, domain.DecisionBusiness}
		t := types[rng.Intn(len(types))]
		pct := 0
		if t == domain.DecisionSplit {
			pct = 30 + rng.Intn(41)
		}
		split, err := dispute.ComputeSplit(sar, t, pct)
		if err != nil {
			panic(err)
		}
		d.Resolution = &domain.Resolution{
			ID:         fmt.Sprintf("RES-%03d", i+1),
			Type:       t,
			Percentage: pct,
			Reasoning:  "Evidence reviewed from both parties; ruling follows the signed brief.",
			Split:      split,
			ResolvedBy: "admin",
			ResolvedAt: now.Add(-6 * time.Hour),
		}
	}
	return d
}

func writeEscrowCSV(path string, rows []paymentRow) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{"campaign_id", "campaign", "business", "influencer", "net_amount", "currency", "status", "created_at"})
	for _, r := range rows {
		w.Write([]string{
			r.campaignID, r.campaign, r.business, r.influencer,
			r.net.StringFixed(2), r.currency, string(r.status), r.createdAt.Format("2006-01-02"),
		})
	}
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
