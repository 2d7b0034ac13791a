package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the Postgres store so service
// behavior can be tested without a database.
type memStore struct {
	mu sync.Mutex

	offerings      map[uuid.UUID]*models.Offering
	days           map[string]*models.PriceDayRecord
	trackingSubs   []models.TrackingSubscription
	instrumentSubs []models.InstrumentSubscription
	recipients     map[uuid.UUID]models.Recipient

	updateCount    int
	notifiedBumps  map[uuid.UUID]int
	failOnUpdate   bool
	failOnDayWrite bool
}

func newMemStore() *memStore {
	return &memStore{
		offerings:     make(map[uuid.UUID]*models.Offering),
		days:          make(map[string]*models.PriceDayRecord),
		recipients:    make(map[uuid.UUID]models.Recipient),
		notifiedBumps: make(map[uuid.UUID]int),
	}
}

func dayKey(offeringID uuid.UUID, dayIndex int) string {
	return fmt.Sprintf("%s:%d", offeringID, dayIndex)
}

func (m *memStore) GetOffering(_ context.Context, id uuid.UUID) (*models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offering, ok := m.offerings[id]
	if !ok {
		return nil, nil
	}
	copied := *offering
	return &copied, nil
}

func (m *memStore) GetOfferingByTicker(_ context.Context, ticker string) (*models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, offering := range m.offerings {
		if offering.Ticker != nil && *offering.Ticker == ticker {
			copied := *offering
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetOfferingByReference(_ context.Context, referenceID string) (*models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, offering := range m.offerings {
		if offering.ReferenceID != nil && *offering.ReferenceID == referenceID {
			copied := *offering
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetOfferingByNormalizedName(_ context.Context, normalizedName string) (*models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, offering := range m.offerings {
		if NormalizeCompanyName(offering.CompanyName) == normalizedName {
			copied := *offering
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListActiveOfferings(_ context.Context) ([]models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Offering
	for _, offering := range m.offerings {
		if !offering.Archived {
			out = append(out, *offering)
		}
	}
	return out, nil
}

func (m *memStore) ListTrackedOfferings(_ context.Context) ([]models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Offering
	for _, offering := range m.offerings {
		if !offering.Archived && offering.CeilingTrackingActive && !offering.CeilingBroken {
			out = append(out, *offering)
		}
	}
	return out, nil
}

func (m *memStore) ListRetirableOfferings(_ context.Context, cutoff time.Time) ([]models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Offering
	for _, offering := range m.offerings {
		if offering.Archived || offering.Status != models.StatusTrading || offering.TradingStart == nil {
			continue
		}
		if !offering.TradingStart.After(cutoff) {
			out = append(out, *offering)
		}
	}
	return out, nil
}

func (m *memStore) CreateOffering(_ context.Context, offering *models.Offering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offering.ID == uuid.Nil {
		offering.ID = uuid.New()
	}
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = time.Now()
	}
	copied := *offering
	m.offerings[offering.ID] = &copied
	return nil
}

func (m *memStore) UpdateOffering(_ context.Context, offering *models.Offering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnUpdate {
		return fmt.Errorf("simulated update failure")
	}
	m.updateCount++
	copied := *offering
	m.offerings[offering.ID] = &copied
	return nil
}

func (m *memStore) GetPriceDay(_ context.Context, offeringID uuid.UUID, dayIndex int) (*models.PriceDayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.days[dayKey(offeringID, dayIndex)]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *memStore) GetLatestPriceDay(_ context.Context, offeringID uuid.UUID) (*models.PriceDayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.PriceDayRecord
	for _, record := range m.days {
		if record.OfferingID != offeringID {
			continue
		}
		if latest == nil || record.DayIndex > latest.DayIndex {
			latest = record
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (m *memStore) ListPriceDays(_ context.Context, offeringID uuid.UUID) ([]models.PriceDayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceDayRecord
	for i := 1; ; i++ {
		record, ok := m.days[dayKey(offeringID, i)]
		if !ok {
			break
		}
		out = append(out, *record)
	}
	return out, nil
}

func (m *memStore) UpsertPriceDay(_ context.Context, record *models.PriceDayRecord) (*models.PriceDayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnDayWrite {
		return nil, fmt.Errorf("simulated day write failure")
	}

	key := dayKey(record.OfferingID, record.DayIndex)
	if existing, ok := m.days[key]; ok {
		updated := *record
		updated.ID = existing.ID
		updated.NotifiedCeilingBreak = existing.NotifiedCeilingBreak
		updated.NotifiedFloor = existing.NotifiedFloor
		updated.NotifiedRelock = existing.NotifiedRelock
		updated.CreatedAt = existing.CreatedAt
		m.days[key] = &updated
		copied := updated
		return &copied, nil
	}

	stored := *record
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = time.Now()
	m.days[key] = &stored
	copied := stored
	return &copied, nil
}

func (m *memStore) MarkNotified(_ context.Context, recordID uuid.UUID, kind models.NotificationKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.days {
		if record.ID != recordID {
			continue
		}
		if record.Notified(kind) {
			return false, nil
		}
		record.SetNotified(kind)
		return true, nil
	}
	return false, fmt.Errorf("no record with id %s", recordID)
}

func (m *memStore) ListTrackingSubscriptions(_ context.Context, offeringID uuid.UUID) ([]models.TrackingSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TrackingSubscription
	for _, sub := range m.trackingSubs {
		if sub.OfferingID == offeringID && sub.IsActive {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *memStore) ListInstrumentSubscriptions(_ context.Context, offeringID uuid.UUID, kind models.NotificationKind) ([]models.InstrumentSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InstrumentSubscription
	for _, sub := range m.instrumentSubs {
		if sub.Muted || sub.EventType != kind {
			continue
		}
		if sub.AnnualBundle || (sub.OfferingID != nil && *sub.OfferingID == offeringID) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *memStore) GetRecipients(_ context.Context, ids []uuid.UUID) ([]models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Recipient
	for _, id := range ids {
		if recipient, ok := m.recipients[id]; ok {
			out = append(out, recipient)
		}
	}
	return out, nil
}

func (m *memStore) IncrementTrackingNotified(_ context.Context, subscriptionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiedBumps[subscriptionID]++
	return nil
}

// fakeEmitter records emissions and can be switched into a failing mode.
type fakeEmitter struct {
	mu      sync.Mutex
	emits   []string
	failAll bool
}

func (e *fakeEmitter) Emit(_ context.Context, token, title, _ string, _ map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failAll {
		return fmt.Errorf("simulated transport failure")
	}
	e.emits = append(e.emits, token+"|"+title)
	return nil
}

func (e *fakeEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.emits)
}

func strPtr(s string) *string        { return &s }
func floatPtr(f float64) *float64    { return &f }
func datePtr(t time.Time) *time.Time { return &t }
