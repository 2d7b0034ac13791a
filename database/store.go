package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Store is the Postgres-backed implementation of the service storage
// boundaries. All queries run through executeWithRetry so transient
// connection faults do not surface as operation failures.
type Store struct {
	db    *sql.DB
	retry retryConfig
}

type retryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		retry: retryConfig{
			MaxRetries:    3,
			BaseDelay:     100 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2.0,
		},
	}
}

// executeWithRetry runs a database operation with exponential backoff for
// retryable errors.
func (s *Store) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(s.retry.BaseDelay) *
				math.Pow(s.retry.BackoffFactor, float64(attempt-1)))
			if delay > s.retry.MaxDelay {
				delay = s.retry.MaxDelay
			}

			logrus.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
				"error":   lastErr,
			}).Warn("Retrying database operation")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				logrus.WithField("attempt", attempt).Info("Database operation succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !isRetryableDBError(err) {
			return err
		}
	}

	return fmt.Errorf("database operation failed after %d retries: %w", s.retry.MaxRetries, lastErr)
}

func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"deadlock",
		"connection lost",
		"server shutdown",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}

	return false
}

const offeringColumns = `id, ticker, company_name, reference_id, status, archived, archived_at,
	distribution_completed, spk_approval_date, subscription_start, subscription_end,
	trading_start, expected_trading_date, ceiling_tracking_active, ceiling_broken,
	first_day_close_price, trading_day_count, ipo_price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOffering(row rowScanner) (*models.Offering, error) {
	var o models.Offering
	err := row.Scan(
		&o.ID, &o.Ticker, &o.CompanyName, &o.ReferenceID, &o.Status, &o.Archived, &o.ArchivedAt,
		&o.DistributionCompleted, &o.SPKApprovalDate, &o.SubscriptionStart, &o.SubscriptionEnd,
		&o.TradingStart, &o.ExpectedTradingDate, &o.CeilingTrackingActive, &o.CeilingBroken,
		&o.FirstDayClosePrice, &o.TradingDayCount, &o.IPOPrice, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan offering: %w", err)
	}
	return &o, nil
}

func (s *Store) getOfferingBy(ctx context.Context, where string, arg interface{}) (*models.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE ` + where

	var offering *models.Offering
	err := s.executeWithRetry(ctx, func() error {
		var scanErr error
		offering, scanErr = scanOffering(s.db.QueryRowContext(ctx, query, arg))
		return scanErr
	})
	return offering, err
}

func (s *Store) GetOffering(ctx context.Context, id uuid.UUID) (*models.Offering, error) {
	return s.getOfferingBy(ctx, "id = $1", id)
}

func (s *Store) GetOfferingByTicker(ctx context.Context, ticker string) (*models.Offering, error) {
	return s.getOfferingBy(ctx, "ticker = $1", ticker)
}

func (s *Store) GetOfferingByReference(ctx context.Context, referenceID string) (*models.Offering, error) {
	return s.getOfferingBy(ctx, "reference_id = $1", referenceID)
}

func (s *Store) GetOfferingByNormalizedName(ctx context.Context, normalizedName string) (*models.Offering, error) {
	return s.getOfferingBy(ctx, "normalized_name = $1", normalizedName)
}

func (s *Store) listOfferings(ctx context.Context, where string, args ...interface{}) ([]models.Offering, error) {
	query := `SELECT ` + offeringColumns + ` FROM offerings WHERE ` + where + ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query offerings: %w", err)
	}
	defer rows.Close()

	var offerings []models.Offering
	for rows.Next() {
		offering, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		offerings = append(offerings, *offering)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offering rows: %w", err)
	}
	return offerings, nil
}

func (s *Store) ListActiveOfferings(ctx context.Context) ([]models.Offering, error) {
	return s.listOfferings(ctx, "NOT archived")
}

func (s *Store) ListTrackedOfferings(ctx context.Context) ([]models.Offering, error) {
	return s.listOfferings(ctx, "NOT archived AND ceiling_tracking_active AND NOT ceiling_broken")
}

func (s *Store) ListRetirableOfferings(ctx context.Context, cutoff time.Time) ([]models.Offering, error) {
	return s.listOfferings(ctx, "NOT archived AND status = $1 AND trading_start IS NOT NULL AND trading_start <= $2",
		models.StatusTrading, cutoff)
}

func (s *Store) CreateOffering(ctx context.Context, offering *models.Offering) error {
	if offering.ID == uuid.Nil {
		offering.ID = uuid.New()
	}
	if offering.Status == "" {
		offering.Status = models.StatusNewlyApproved
	}

	query := `INSERT INTO offerings (
		id, ticker, company_name, normalized_name, reference_id, status, archived, archived_at,
		distribution_completed, spk_approval_date, subscription_start, subscription_end,
		trading_start, expected_trading_date, ceiling_tracking_active, ceiling_broken,
		first_day_close_price, trading_day_count, ipo_price
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	RETURNING created_at, updated_at`

	return s.executeWithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query,
			offering.ID, offering.Ticker, offering.CompanyName,
			services.NormalizeCompanyName(offering.CompanyName), offering.ReferenceID,
			offering.Status, offering.Archived, offering.ArchivedAt,
			offering.DistributionCompleted, offering.SPKApprovalDate, offering.SubscriptionStart,
			offering.SubscriptionEnd, offering.TradingStart, offering.ExpectedTradingDate,
			offering.CeilingTrackingActive, offering.CeilingBroken, offering.FirstDayClosePrice,
			offering.TradingDayCount, offering.IPOPrice,
		).Scan(&offering.CreatedAt, &offering.UpdatedAt)
	})
}

func (s *Store) UpdateOffering(ctx context.Context, offering *models.Offering) error {
	query := `UPDATE offerings SET
		ticker = $2, company_name = $3, normalized_name = $4, reference_id = $5, status = $6,
		archived = $7, archived_at = $8, distribution_completed = $9, spk_approval_date = $10,
		subscription_start = $11, subscription_end = $12, trading_start = $13,
		expected_trading_date = $14, ceiling_tracking_active = $15, ceiling_broken = $16,
		first_day_close_price = $17, trading_day_count = $18, ipo_price = $19,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = $1
	RETURNING updated_at`

	return s.executeWithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query,
			offering.ID, offering.Ticker, offering.CompanyName,
			services.NormalizeCompanyName(offering.CompanyName), offering.ReferenceID,
			offering.Status, offering.Archived, offering.ArchivedAt,
			offering.DistributionCompleted, offering.SPKApprovalDate, offering.SubscriptionStart,
			offering.SubscriptionEnd, offering.TradingStart, offering.ExpectedTradingDate,
			offering.CeilingTrackingActive, offering.CeilingBroken, offering.FirstDayClosePrice,
			offering.TradingDayCount, offering.IPOPrice,
		).Scan(&offering.UpdatedAt)
	})
}

const priceDayColumns = `id, offering_id, day_index, trade_date, open_price, high_price, low_price,
	close_price, hit_ceiling, hit_floor, relocked, classification, pct_change,
	notified_ceiling_break, notified_floor, notified_relock, created_at, updated_at`

func scanPriceDay(row rowScanner) (*models.PriceDayRecord, error) {
	var r models.PriceDayRecord
	err := row.Scan(
		&r.ID, &r.OfferingID, &r.DayIndex, &r.TradeDate, &r.OpenPrice, &r.HighPrice, &r.LowPrice,
		&r.ClosePrice, &r.HitCeiling, &r.HitFloor, &r.Relocked, &r.Classification, &r.PctChange,
		&r.NotifiedCeilingBreak, &r.NotifiedFloor, &r.NotifiedRelock, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan price day: %w", err)
	}
	return &r, nil
}

func (s *Store) GetPriceDay(ctx context.Context, offeringID uuid.UUID, dayIndex int) (*models.PriceDayRecord, error) {
	query := `SELECT ` + priceDayColumns + ` FROM offering_price_days WHERE offering_id = $1 AND day_index = $2`

	var record *models.PriceDayRecord
	err := s.executeWithRetry(ctx, func() error {
		var scanErr error
		record, scanErr = scanPriceDay(s.db.QueryRowContext(ctx, query, offeringID, dayIndex))
		return scanErr
	})
	return record, err
}

func (s *Store) GetLatestPriceDay(ctx context.Context, offeringID uuid.UUID) (*models.PriceDayRecord, error) {
	query := `SELECT ` + priceDayColumns + ` FROM offering_price_days
		WHERE offering_id = $1 ORDER BY day_index DESC LIMIT 1`

	var record *models.PriceDayRecord
	err := s.executeWithRetry(ctx, func() error {
		var scanErr error
		record, scanErr = scanPriceDay(s.db.QueryRowContext(ctx, query, offeringID))
		return scanErr
	})
	return record, err
}

func (s *Store) ListPriceDays(ctx context.Context, offeringID uuid.UUID) ([]models.PriceDayRecord, error) {
	query := `SELECT ` + priceDayColumns + ` FROM offering_price_days
		WHERE offering_id = $1 ORDER BY day_index`

	rows, err := s.db.QueryContext(ctx, query, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price days: %w", err)
	}
	defer rows.Close()

	var records []models.PriceDayRecord
	for rows.Next() {
		record, err := scanPriceDay(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price day rows: %w", err)
	}
	return records, nil
}

// UpsertPriceDay writes the day keyed by (offering, day index). The
// conflict branch rewrites price and classification fields only; the
// notification guard flags keep their stored values and come back in the
// returned record.
func (s *Store) UpsertPriceDay(ctx context.Context, record *models.PriceDayRecord) (*models.PriceDayRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `INSERT INTO offering_price_days (
		id, offering_id, day_index, trade_date, open_price, high_price, low_price, close_price,
		hit_ceiling, hit_floor, relocked, classification, pct_change
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (offering_id, day_index) DO UPDATE SET
		trade_date = EXCLUDED.trade_date,
		open_price = EXCLUDED.open_price,
		high_price = EXCLUDED.high_price,
		low_price = EXCLUDED.low_price,
		close_price = EXCLUDED.close_price,
		hit_ceiling = EXCLUDED.hit_ceiling,
		hit_floor = EXCLUDED.hit_floor,
		relocked = EXCLUDED.relocked,
		classification = EXCLUDED.classification,
		pct_change = EXCLUDED.pct_change,
		updated_at = CURRENT_TIMESTAMP
	RETURNING ` + priceDayColumns

	var stored *models.PriceDayRecord
	err := s.executeWithRetry(ctx, func() error {
		var scanErr error
		stored, scanErr = scanPriceDay(s.db.QueryRowContext(ctx, query,
			record.ID, record.OfferingID, record.DayIndex, record.TradeDate,
			record.OpenPrice, record.HighPrice, record.LowPrice, record.ClosePrice,
			record.HitCeiling, record.HitFloor, record.Relocked, record.Classification,
			record.PctChange,
		))
		return scanErr
	})
	return stored, err
}

// MarkNotified flips the guard flag for the given kind with a
// check-and-set so concurrent passes cannot both consume the event.
func (s *Store) MarkNotified(ctx context.Context, recordID uuid.UUID, kind models.NotificationKind) (bool, error) {
	var column string
	switch kind {
	case models.NotifyCeilingBreak:
		column = "notified_ceiling_break"
	case models.NotifyFloorLock:
		column = "notified_floor"
	case models.NotifyRelock:
		column = "notified_relock"
	default:
		return false, fmt.Errorf("unknown notification kind: %s", kind)
	}

	query := fmt.Sprintf(`UPDATE offering_price_days
		SET %s = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND NOT %s`, column, column)

	var flipped bool
	err := s.executeWithRetry(ctx, func() error {
		result, execErr := s.db.ExecContext(ctx, query, recordID)
		if execErr != nil {
			return execErr
		}
		affected, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		flipped = affected > 0
		return nil
	})
	return flipped, err
}

func (s *Store) ListTrackingSubscriptions(ctx context.Context, offeringID uuid.UUID) ([]models.TrackingSubscription, error) {
	query := `SELECT id, recipient_id, offering_id, tracking_days, is_active, expires_at, notified_count, created_at
		FROM tracking_subscriptions WHERE offering_id = $1 AND is_active`

	rows, err := s.db.QueryContext(ctx, query, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracking subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.TrackingSubscription
	for rows.Next() {
		var sub models.TrackingSubscription
		if err := rows.Scan(&sub.ID, &sub.RecipientID, &sub.OfferingID, &sub.TrackingDays,
			&sub.IsActive, &sub.ExpiresAt, &sub.NotifiedCount, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) ListInstrumentSubscriptions(ctx context.Context, offeringID uuid.UUID, kind models.NotificationKind) ([]models.InstrumentSubscription, error) {
	query := `SELECT id, recipient_id, offering_id, event_type, annual_bundle, muted, created_at
		FROM instrument_subscriptions
		WHERE NOT muted AND event_type = $1 AND (annual_bundle OR offering_id = $2)`

	rows, err := s.db.QueryContext(ctx, query, kind, offeringID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.InstrumentSubscription
	for rows.Next() {
		var sub models.InstrumentSubscription
		if err := rows.Scan(&sub.ID, &sub.RecipientID, &sub.OfferingID, &sub.EventType,
			&sub.AnnualBundle, &sub.Muted, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) GetRecipients(ctx context.Context, ids []uuid.UUID) ([]models.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, device_token, notifications_enabled, notify_ceiling_events, notify_lifecycle_events, created_at
		FROM recipients WHERE id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.DeviceToken, &r.NotificationsEnabled,
			&r.NotifyCeilingEvents, &r.NotifyLifecycleEvents, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

func (s *Store) IncrementTrackingNotified(ctx context.Context, subscriptionID uuid.UUID) error {
	query := `UPDATE tracking_subscriptions SET notified_count = notified_count + 1 WHERE id = $1`

	return s.executeWithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, subscriptionID)
		return err
	})
}
