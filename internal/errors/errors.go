// Package errors provides error classification and structured error reporting
// for the candle scraper. Failures from the upstream APIs, the normalizer and
// the dataset store are mapped onto a small set of types so that logs and the
// CLI can report them consistently.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// ErrorType represents the classification of an error
type ErrorType string

const (
	// Transient error types
	ErrorTypeNetwork     ErrorType = "network"      // Network connectivity issues
	ErrorTypeTimeout     ErrorType = "timeout"      // Request timeout
	ErrorTypeRateLimit   ErrorType = "rate_limit"   // HTTP 429 from the upstream
	ErrorTypeServerError ErrorType = "server_error" // HTTP 5xx errors

	// Permanent error types
	ErrorTypeBadRequest    ErrorType = "bad_request"   // HTTP 4xx errors (except rate limit)
	ErrorTypeDecode        ErrorType = "decode"        // Malformed upstream or on-disk payload
	ErrorTypeStorage       ErrorType = "storage"       // Dataset read/write failures
	ErrorTypeConfiguration ErrorType = "configuration" // Configuration errors
	ErrorTypeCancelled     ErrorType = "cancelled"     // Context cancelled by the caller

	ErrorTypeUnknown ErrorType = "unknown"
)

// Severity represents the severity level of an error
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// statusCoder is implemented by errors that carry an HTTP status code.
type statusCoder interface {
	HTTPStatus() int
}

// ClassifiedError represents an error with metadata for handling decisions
type ClassifiedError struct {
	Err       error     `json:"error"`
	Type      ErrorType `json:"type"`
	Severity  Severity  `json:"severity"`
	Retryable bool      `json:"retryable"`
	Component string    `json:"component"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", ce.Component, ce.Type, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is checks if the error is of the specified type
func (ce *ClassifiedError) Is(target error) bool {
	if t, ok := target.(*ClassifiedError); ok {
		return ce.Type == t.Type
	}
	return false
}

// LogAttrs returns the classification as slog key-value pairs.
func (ce *ClassifiedError) LogAttrs() []any {
	return []any{
		"error", ce.Err.Error(),
		"error_type", string(ce.Type),
		"severity", ce.Severity.String(),
		"retryable", ce.Retryable,
	}
}

// ErrorClassifier classifies errors and keeps per-type counts. The scraper
// uses one classifier per run and reports GetStats in the run result.
type ErrorClassifier struct {
	logger *slog.Logger
	mu     sync.RWMutex
	stats  map[ErrorType]ErrorStats
}

// ErrorStats tracks error statistics for monitoring
type ErrorStats struct {
	Count     int64     `json:"count"`
	LastSeen  time.Time `json:"last_seen"`
	FirstSeen time.Time `json:"first_seen"`
}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier(logger *slog.Logger) *ErrorClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorClassifier{
		logger: logger,
		stats:  make(map[ErrorType]ErrorStats),
	}
}

// Classify analyzes an error and returns a ClassifiedError with handling metadata
func (ec *ErrorClassifier) Classify(err error, component, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}

	var existing *ClassifiedError
	if errors.As(err, &existing) {
		return existing
	}

	classified := Classify(err, component, operation)
	ec.updateStats(classified.Type)

	ec.logger.Debug("error classified",
		"type", classified.Type,
		"severity", classified.Severity.String(),
		"component", component,
		"operation", operation,
		"error", err.Error())

	return classified
}

func (ec *ErrorClassifier) updateStats(errorType ErrorType) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	stats := ec.stats[errorType]
	stats.Count++
	stats.LastSeen = time.Now()
	if stats.FirstSeen.IsZero() {
		stats.FirstSeen = stats.LastSeen
	}
	ec.stats[errorType] = stats
}

// GetStats returns error statistics
func (ec *ErrorClassifier) GetStats() map[ErrorType]ErrorStats {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	stats := make(map[ErrorType]ErrorStats, len(ec.stats))
	for k, v := range ec.stats {
		stats[k] = v
	}
	return stats
}

// Classify builds a ClassifiedError without recording statistics.
func Classify(err error, component, operation string) *ClassifiedError {
	if err == nil {
		return nil
	}

	errorType := classifyErrorType(err)
	return &ClassifiedError{
		Err:       err,
		Type:      errorType,
		Severity:  determineSeverity(errorType),
		Retryable: isRetryableType(errorType),
		Component: component,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// classifyErrorType determines the error type from typed causes first and
// falls back to message patterns.
func classifyErrorType(err error) ErrorType {
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return typeForStatus(sc.HTTPStatus())
	}

	var ne *models.NormalizeError
	if errors.As(err, &ne) {
		return ErrorTypeDecode
	}

	if isTimeoutError(err) {
		return ErrorTypeTimeout
	}
	if isNetworkError(err) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests"):
		return ErrorTypeRateLimit
	case strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "decode") ||
		strings.Contains(errStr, "parse") ||
		strings.Contains(errStr, "invalid character"):
		return ErrorTypeDecode
	case strings.Contains(errStr, "config"):
		return ErrorTypeConfiguration
	case strings.Contains(errStr, "storage") || strings.Contains(errStr, "permission denied"):
		return ErrorTypeStorage
	}

	return ErrorTypeUnknown
}

func typeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case status >= 500:
		return ErrorTypeServerError
	case status >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// isNetworkError checks if the error is network-related
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"no route to host",
		"host unreachable",
		"network unreachable",
		"no such host",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isTimeoutError checks if the error is timeout-related
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// determineSeverity assigns a severity level based on error type
func determineSeverity(errorType ErrorType) Severity {
	switch errorType {
	case ErrorTypeStorage, ErrorTypeConfiguration:
		return SeverityHigh
	case ErrorTypeDecode, ErrorTypeBadRequest, ErrorTypeServerError:
		return SeverityMedium
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeCancelled:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func isRetryableType(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is transient. Unclassified errors are
// classified on the fly.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return isRetryableType(classifyErrorType(err))
}

// GetErrorType extracts or derives the error type
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return classifyErrorType(err)
}

// GetSeverity extracts or derives the severity
func GetSeverity(err error) Severity {
	return determineSeverity(GetErrorType(err))
}
