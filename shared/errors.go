package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryProcessing    ErrorCategory = "processing"
	ErrorCategoryTransport     ErrorCategory = "transport"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"timestamp":        e.Timestamp,
		"details":          e.Details,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	// If it's already a ServiceError, just update the context
	if serviceErr, ok := err.(*ServiceError); ok {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// IsValidationError reports whether err is a validation-category
// ServiceError, the kind rejected synchronously at the call boundary.
func IsValidationError(err error) bool {
	if serviceErr, ok := err.(*ServiceError); ok {
		return serviceErr.Category == ErrorCategoryValidation
	}
	return false
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	if serviceErr, ok := err.(*ServiceError); ok {
		return serviceErr.IsRetryable()
	}

	// Default heuristics for standard errors
	errorMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout", "connection refused", "connection reset",
		"temporary failure", "service unavailable", "too many requests",
		"deadlock", "network",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}

	return false
}

// BatchProcessingResult represents the result of batch processing with error isolation
type BatchProcessingResult struct {
	TotalProcessed int           `json:"total_processed"`
	SuccessCount   int           `json:"success_count"`
	FailedItems    []FailedItem  `json:"failed_items"`
	SuccessRate    float64       `json:"success_rate"`
	ProcessingTime time.Duration `json:"processing_time"`
	ErrorSummary   string        `json:"error_summary,omitempty"`
}

// FailedItem represents an item that failed processing
type FailedItem struct {
	ItemID      string    `json:"item_id"`
	Error       error     `json:"error"`
	FailureTime time.Time `json:"failure_time"`
}

// ProcessBatchWithIsolation runs the processor over each item id and
// isolates failures: one bad item never aborts the rest of the batch.
func ProcessBatchWithIsolation(itemIDs []string, processor func(itemID string) error) BatchProcessingResult {
	startTime := time.Now()
	var failedItems []FailedItem
	var sampleErrors []error
	successCount := 0

	for _, itemID := range itemIDs {
		if err := processor(itemID); err != nil {
			failedItems = append(failedItems, FailedItem{
				ItemID:      itemID,
				Error:       err,
				FailureTime: time.Now(),
			})
			if len(sampleErrors) < 10 {
				sampleErrors = append(sampleErrors, err)
			}
			continue
		}
		successCount++
	}

	result := BatchProcessingResult{
		TotalProcessed: len(itemIDs),
		SuccessCount:   successCount,
		FailedItems:    failedItems,
		ProcessingTime: time.Since(startTime),
	}
	if result.TotalProcessed > 0 {
		result.SuccessRate = float64(successCount) / float64(result.TotalProcessed)
	}
	if len(failedItems) > 0 {
		result.ErrorSummary = BuildBatchProcessingErrorSummary(successCount, len(failedItems), sampleErrors)
	}
	return result
}

// BuildBatchProcessingErrorSummary creates a comprehensive error summary for batch processing results
func BuildBatchProcessingErrorSummary(successCount, totalErrorCount int, sampleErrors []error) string {
	var summaryBuilder strings.Builder
	summaryBuilder.WriteString(fmt.Sprintf("batch processing completed with %d successes and %d failures", successCount, totalErrorCount))

	sampleSize := len(sampleErrors)
	if sampleSize > 3 {
		sampleSize = 3
	}

	for i := 0; i < sampleSize; i++ {
		summaryBuilder.WriteString(fmt.Sprintf("; %s", sampleErrors[i].Error()))
	}

	if totalErrorCount > len(sampleErrors) {
		summaryBuilder.WriteString(fmt.Sprintf("; and %d additional errors", totalErrorCount-len(sampleErrors)))
	}

	return summaryBuilder.String()
}
