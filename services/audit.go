package services

import (
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/models"
	"github.com/sirupsen/logrus"
)

// OfferingAuditLogger emits structured audit records for every offering
// mutation: creations, fact merges, lifecycle transitions and archival.
type OfferingAuditLogger struct {
	serviceName string
}

func NewOfferingAuditLogger() *OfferingAuditLogger {
	return &OfferingAuditLogger{serviceName: "offering-audit"}
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	ServiceName string                 `json:"service_name"`
	Operation   string                 `json:"operation"`
	EntityID    string                 `json:"entity_id"`
	Changes     map[string]interface{} `json:"changes,omitempty"`
	Success     bool                   `json:"success"`
	ErrorMsg    *string                `json:"error_msg,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// LogOfferingCreation logs a freshly created offering.
func (a *OfferingAuditLogger) LogOfferingCreation(offering *models.Offering, success bool, cause error) {
	a.logAuditEntry(AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "CREATE",
		EntityID:    offering.ID.String(),
		Success:     success,
		ErrorMsg:    errMsg(cause),
		Metadata: map[string]interface{}{
			"company_name": offering.CompanyName,
			"status":       offering.Status,
		},
	})
}

// LogOfferingUpdate logs a fact merge with a before/after field diff.
func (a *OfferingAuditLogger) LogOfferingUpdate(before, after *models.Offering, success bool, cause error) {
	changes := calculateOfferingChanges(before, after)
	a.logAuditEntry(AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "UPDATE",
		EntityID:    after.ID.String(),
		Changes:     changes,
		Success:     success,
		ErrorMsg:    errMsg(cause),
		Metadata: map[string]interface{}{
			"company_name":  after.CompanyName,
			"status":        after.Status,
			"changes_count": len(changes),
		},
	})
}

// LogStatusTransition logs one lifecycle step with its trigger.
func (a *OfferingAuditLogger) LogStatusTransition(offering *models.Offering, from, to models.OfferingStatus, trigger string) {
	a.logAuditEntry(AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "STATUS_TRANSITION",
		EntityID:    offering.ID.String(),
		Changes: map[string]interface{}{
			"status": map[string]interface{}{"before": from, "after": to},
		},
		Success: true,
		Metadata: map[string]interface{}{
			"company_name": offering.CompanyName,
			"trigger":      trigger,
		},
	})
}

// LogArchival logs an archival with its trigger.
func (a *OfferingAuditLogger) LogArchival(offering *models.Offering, trigger string) {
	a.logAuditEntry(AuditEntry{
		Timestamp:   time.Now(),
		ServiceName: a.serviceName,
		Operation:   "ARCHIVE",
		EntityID:    offering.ID.String(),
		Success:     true,
		Metadata: map[string]interface{}{
			"company_name": offering.CompanyName,
			"status":       offering.Status,
			"trigger":      trigger,
		},
	})
}

// calculateOfferingChanges compares two offering snapshots field by field.
func calculateOfferingChanges(before, after *models.Offering) map[string]interface{} {
	changes := make(map[string]interface{})

	if before.CompanyName != after.CompanyName {
		changes["company_name"] = map[string]interface{}{"before": before.CompanyName, "after": after.CompanyName}
	}
	if before.Status != after.Status {
		changes["status"] = map[string]interface{}{"before": before.Status, "after": after.Status}
	}
	if before.Archived != after.Archived {
		changes["archived"] = map[string]interface{}{"before": before.Archived, "after": after.Archived}
	}
	if before.IPOPrice != after.IPOPrice {
		changes["ipo_price"] = map[string]interface{}{"before": before.IPOPrice, "after": after.IPOPrice}
	}
	if !equalStringPtr(before.Ticker, after.Ticker) {
		changes["ticker"] = map[string]interface{}{"before": before.Ticker, "after": after.Ticker}
	}
	if !equalStringPtr(before.ReferenceID, after.ReferenceID) {
		changes["reference_id"] = map[string]interface{}{"before": before.ReferenceID, "after": after.ReferenceID}
	}
	if !equalDatePtr(before.SPKApprovalDate, after.SPKApprovalDate) {
		changes["spk_approval_date"] = map[string]interface{}{"before": before.SPKApprovalDate, "after": after.SPKApprovalDate}
	}
	if !equalDatePtr(before.SubscriptionStart, after.SubscriptionStart) {
		changes["subscription_start"] = map[string]interface{}{"before": before.SubscriptionStart, "after": after.SubscriptionStart}
	}
	if !equalDatePtr(before.SubscriptionEnd, after.SubscriptionEnd) {
		changes["subscription_end"] = map[string]interface{}{"before": before.SubscriptionEnd, "after": after.SubscriptionEnd}
	}
	if !equalDatePtr(before.TradingStart, after.TradingStart) {
		changes["trading_start"] = map[string]interface{}{"before": before.TradingStart, "after": after.TradingStart}
	}
	if !equalDatePtr(before.ExpectedTradingDate, after.ExpectedTradingDate) {
		changes["expected_trading_date"] = map[string]interface{}{"before": before.ExpectedTradingDate, "after": after.ExpectedTradingDate}
	}

	return changes
}

func equalDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func errMsg(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// logAuditEntry writes the entry through structured logging.
func (a *OfferingAuditLogger) logAuditEntry(entry AuditEntry) {
	logFields := logrus.Fields{
		"audit_timestamp": entry.Timestamp,
		"service_name":    entry.ServiceName,
		"operation":       entry.Operation,
		"entity_id":       entry.EntityID,
		"success":         entry.Success,
	}

	if entry.ErrorMsg != nil {
		logFields["error_msg"] = *entry.ErrorMsg
	}
	if len(entry.Changes) > 0 {
		logFields["changes"] = entry.Changes
	}
	for key, value := range entry.Metadata {
		logFields["meta_"+key] = value
	}

	if entry.Success {
		logrus.WithFields(logFields).Info("Audit log entry")
	} else {
		logrus.WithFields(logFields).Warn("Audit log entry - operation failed")
	}
}
