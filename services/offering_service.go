package services

import (
	"context"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/sirupsen/logrus"
)

// OfferingFacts is one ingestion payload: whatever a source currently
// knows about an offering. Nil fields mean "no information", never "clear
// the stored value".
type OfferingFacts struct {
	Ticker      *string `json:"ticker"`
	ReferenceID *string `json:"reference_id"`
	CompanyName string  `json:"company_name"`

	SPKApprovalDate     *time.Time `json:"spk_approval_date"`
	SubscriptionStart   *time.Time `json:"subscription_start"`
	SubscriptionEnd     *time.Time `json:"subscription_end"`
	TradingStart        *time.Time `json:"trading_start"`
	ExpectedTradingDate *time.Time `json:"expected_trading_date"`

	IPOPrice *float64 `json:"ipo_price"`
}

// IdentityResolver finds the stored offering an ingestion payload refers
// to. Keeping it behind an interface lets the matching heuristic change
// without touching the upsert path.
type IdentityResolver interface {
	Resolve(ctx context.Context, facts OfferingFacts) (*models.Offering, error)
}

// storeIdentityResolver matches by ticker first, then by the durable
// reference id, then by normalized company name.
type storeIdentityResolver struct {
	offerings OfferingStore
}

func (r *storeIdentityResolver) Resolve(ctx context.Context, facts OfferingFacts) (*models.Offering, error) {
	if facts.Ticker != nil && *facts.Ticker != "" {
		offering, err := r.offerings.GetOfferingByTicker(ctx, *facts.Ticker)
		if err != nil || offering != nil {
			return offering, err
		}
	}
	if facts.ReferenceID != nil && *facts.ReferenceID != "" {
		offering, err := r.offerings.GetOfferingByReference(ctx, *facts.ReferenceID)
		if err != nil || offering != nil {
			return offering, err
		}
	}
	if normalized := NormalizeCompanyName(facts.CompanyName); normalized != "" {
		return r.offerings.GetOfferingByNormalizedName(ctx, normalized)
	}
	return nil, nil
}

// NormalizeCompanyName folds a free-text company name into a matching key:
// uppercased, punctuation stripped, whitespace collapsed, legal-form
// suffixes dropped.
func NormalizeCompanyName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '-', '\'', '"', '(', ')':
			return ' '
		}
		return r
	}, strings.ToUpper(name))

	words := strings.Fields(cleaned)
	for len(words) > 0 {
		switch words[len(words)-1] {
		case "AS", "A", "S", "ANONIM", "SIRKETI", "TAS", "T":
			words = words[:len(words)-1]
		default:
			return strings.Join(words, " ")
		}
	}
	return ""
}

// OfferingService upserts offering facts from ingestion sources. It never
// deletes and never regresses lifecycle state; the state machine owns the
// status field.
type OfferingService struct {
	offerings OfferingStore
	resolver  IdentityResolver
	audit     *OfferingAuditLogger
	metrics   *shared.ServiceMetrics
}

func NewOfferingService(offerings OfferingStore) *OfferingService {
	return &OfferingService{
		offerings: offerings,
		resolver:  &storeIdentityResolver{offerings: offerings},
		audit:     NewOfferingAuditLogger(),
		metrics:   shared.NewServiceMetrics("offering-service"),
	}
}

// WithResolver swaps the identity heuristic, mainly for tests.
func (s *OfferingService) WithResolver(resolver IdentityResolver) *OfferingService {
	s.resolver = resolver
	return s
}

// Metrics exposes the service's counters for the metrics endpoint.
func (s *OfferingService) Metrics() *shared.ServiceMetrics {
	return s.metrics
}

// UpsertOfferingFacts merges an ingestion payload into the matching
// offering, creating one only when allowCreate is set (reserved for the
// single authoritative source). New factual data un-archives an archived
// offering.
func (s *OfferingService) UpsertOfferingFacts(ctx context.Context, facts OfferingFacts, allowCreate bool) (*models.Offering, error) {
	start := time.Now()
	offering, err := s.upsertOfferingFacts(ctx, facts, allowCreate)
	s.metrics.RecordRequest(err == nil, time.Since(start))
	return offering, err
}

func (s *OfferingService) upsertOfferingFacts(ctx context.Context, facts OfferingFacts, allowCreate bool) (*models.Offering, error) {
	if strings.TrimSpace(facts.CompanyName) == "" {
		return nil, shared.NewServiceError(shared.ErrorCategoryValidation, "MISSING_COMPANY_NAME",
			"company name is required", "offering-service", "UpsertOfferingFacts", false, nil)
	}

	existing, err := s.resolver.Resolve(ctx, facts)
	if err != nil {
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "IDENTITY_RESOLVE_FAILED",
			"offering-service", "UpsertOfferingFacts", true)
	}

	if existing == nil {
		if !allowCreate {
			logrus.WithField("company_name", facts.CompanyName).
				Info("Unknown offering from non-authoritative source, skipping")
			return nil, nil
		}
		offering := &models.Offering{
			Ticker:              facts.Ticker,
			CompanyName:         strings.TrimSpace(facts.CompanyName),
			ReferenceID:         facts.ReferenceID,
			Status:              models.StatusNewlyApproved,
			SPKApprovalDate:     facts.SPKApprovalDate,
			SubscriptionStart:   facts.SubscriptionStart,
			SubscriptionEnd:     facts.SubscriptionEnd,
			TradingStart:        facts.TradingStart,
			ExpectedTradingDate: facts.ExpectedTradingDate,
		}
		if facts.IPOPrice != nil {
			offering.IPOPrice = *facts.IPOPrice
		}
		if err := s.offerings.CreateOffering(ctx, offering); err != nil {
			s.audit.LogOfferingCreation(offering, false, err)
			return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "OFFERING_CREATE_FAILED",
				"offering-service", "UpsertOfferingFacts", true)
		}
		s.audit.LogOfferingCreation(offering, true, nil)
		return offering, nil
	}

	before := *existing
	changed := mergeFacts(existing, facts)
	if !changed {
		return existing, nil
	}

	if err := s.offerings.UpdateOffering(ctx, existing); err != nil {
		s.audit.LogOfferingUpdate(&before, existing, false, err)
		return nil, shared.WrapError(err, shared.ErrorCategoryDatabase, "OFFERING_UPDATE_FAILED",
			"offering-service", "UpsertOfferingFacts", true)
	}
	s.audit.LogOfferingUpdate(&before, existing, true, nil)
	return existing, nil
}

// mergeFacts applies non-nil payload fields onto the offering and reports
// whether anything changed. Arrival of a date or ticker on an archived
// offering un-archives it.
func mergeFacts(offering *models.Offering, facts OfferingFacts) bool {
	changed := false
	factual := false

	if facts.Ticker != nil && *facts.Ticker != "" && !equalStringPtr(offering.Ticker, facts.Ticker) {
		offering.Ticker = facts.Ticker
		changed = true
		factual = true
	}
	if facts.ReferenceID != nil && *facts.ReferenceID != "" && !equalStringPtr(offering.ReferenceID, facts.ReferenceID) {
		offering.ReferenceID = facts.ReferenceID
		changed = true
	}
	if name := strings.TrimSpace(facts.CompanyName); name != "" && offering.CompanyName != name &&
		NormalizeCompanyName(offering.CompanyName) == NormalizeCompanyName(name) {
		// Same company, fresher spelling.
		offering.CompanyName = name
		changed = true
	}

	if mergeDate(&offering.SPKApprovalDate, facts.SPKApprovalDate) {
		changed = true
		factual = true
	}
	if mergeDate(&offering.SubscriptionStart, facts.SubscriptionStart) {
		changed = true
		factual = true
	}
	if mergeDate(&offering.SubscriptionEnd, facts.SubscriptionEnd) {
		changed = true
		factual = true
	}
	if mergeDate(&offering.TradingStart, facts.TradingStart) {
		changed = true
		factual = true
	}
	if mergeDate(&offering.ExpectedTradingDate, facts.ExpectedTradingDate) {
		changed = true
	}

	if facts.IPOPrice != nil && *facts.IPOPrice > 0 && offering.IPOPrice != *facts.IPOPrice {
		offering.IPOPrice = *facts.IPOPrice
		changed = true
	}

	if factual && offering.Archived {
		offering.Archived = false
		offering.ArchivedAt = nil
		changed = true
		logrus.WithFields(logrus.Fields{
			"offering_id":  offering.ID,
			"company_name": offering.CompanyName,
		}).Info("Un-archived offering after new factual data arrived")
	}

	return changed
}

func mergeDate(dst **time.Time, src *time.Time) bool {
	if src == nil {
		return false
	}
	if *dst != nil && (*dst).Equal(*src) {
		return false
	}
	*dst = src
	return true
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
