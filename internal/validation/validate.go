// Package validation provides centralized input validation logic.
// This includes transfer configuration checks and object metadata checks.
//
// All caller-supplied values are validated before any request is issued, so
// a misconfigured transfer fails during planning rather than mid-flight.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/xfertypes"
)

// Concurrency above this is almost certainly a configuration mistake and
// would exhaust connection pools rather than add throughput.
const maxConnectionsLimit = 256

// ValidateClientConfig validates client-level defaults.
// Returns ErrInvalidInput wrapped with the offending field.
func ValidateClientConfig(cfg *xfertypes.ClientConfig) error {
	if err := validateChunking(cfg.ChunkSize, cfg.SingleShotThreshold); err != nil {
		return err
	}
	if err := validateConcurrency(cfg.MaxConnections); err != nil {
		return err
	}
	return validateRetry(cfg.MaxRetryAttempts, cfg.RetryBaseWait.Nanoseconds(), cfg.RetryMaxWait.Nanoseconds(), cfg.RetryJitterFraction)
}

// ValidateTransferConfig validates the resolved configuration of one
// transfer, after per-call options have been applied over client defaults.
func ValidateTransferConfig(cfg *xfertypes.TransferConfig) error {
	if err := validateChunking(cfg.ChunkSize, cfg.SingleShotThreshold); err != nil {
		return err
	}
	if err := validateConcurrency(cfg.MaxConnections); err != nil {
		return err
	}
	if err := validateRetry(cfg.MaxRetryAttempts, cfg.RetryBaseWait.Nanoseconds(), cfg.RetryMaxWait.Nanoseconds(), cfg.RetryJitterFraction); err != nil {
		return err
	}
	if cfg.MaxChunks < 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("max chunk count cannot be negative, got %d", cfg.MaxChunks))
	}
	if err := validateDigest(cfg.ExpectedDigest); err != nil {
		return err
	}
	if err := ValidateContentType(cfg.ContentType); err != nil {
		return err
	}
	return ValidateMetadata(cfg.Metadata)
}

func validateChunking(chunkSize, singleShotThreshold int64) error {
	if chunkSize <= 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("chunk size must be positive, got %d", chunkSize))
	}
	if singleShotThreshold < 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("single-shot threshold cannot be negative, got %d", singleShotThreshold))
	}
	return nil
}

func validateConcurrency(maxConnections int) error {
	if maxConnections < 1 || maxConnections > maxConnectionsLimit {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("max connections must be between 1 and %d, got %d", maxConnectionsLimit, maxConnections))
	}
	return nil
}

func validateRetry(maxAttempts int, baseWaitNs, maxWaitNs int64, jitter float64) error {
	if maxAttempts < 1 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("retry attempts must be at least 1, got %d", maxAttempts))
	}
	if baseWaitNs < 0 || maxWaitNs < 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage("retry waits cannot be negative")
	}
	if maxWaitNs > 0 && baseWaitNs > maxWaitNs {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage("retry base wait cannot exceed retry max wait")
	}
	if jitter < 0 || jitter > 1 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("retry jitter fraction must be in [0, 1], got %g", jitter))
	}
	return nil
}

// validateDigest checks that an expected digest, when supplied, is
// hex-encoded with an even number of digits.
func validateDigest(digest string) error {
	if digest == "" {
		return nil
	}
	if len(digest)%2 != 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage("expected digest must be hex-encoded")
	}
	for _, char := range digest {
		isHex := (char >= '0' && char <= '9') || (char >= 'a' && char <= 'f') || (char >= 'A' && char <= 'F')
		if !isHex {
			return errors.NewError("validateConfig", errors.ErrInvalidInput).
				WithMessage("expected digest must be hex-encoded")
		}
	}
	return nil
}

// ValidateMetadata validates metadata keys and values attached to uploads.
func ValidateMetadata(metadata map[string]string) error {
	if metadata == nil {
		return nil
	}

	for key, value := range metadata {
		if err := validateMetadataKey(key); err != nil {
			return err
		}
		if err := validateMetadataValue(value); err != nil {
			return err
		}
	}

	return nil
}

// SanitizeMetadata sanitizes metadata values to prevent header injection.
// This removes non-printable characters from keys and control characters
// from values.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}

	sanitized := make(map[string]string, len(metadata))
	for key, value := range metadata {
		sanitized[sanitizeMetadataKey(key)] = sanitizeMetadataValue(value)
	}

	return sanitized
}

// sanitizeMetadataKey sanitizes metadata keys
func sanitizeMetadataKey(key string) string {
	// Remove any non-printable characters
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, key)
}

// sanitizeMetadataValue sanitizes metadata values
func sanitizeMetadataValue(value string) string {
	// Remove any control characters but keep newlines and tabs for multi-line values
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, value)
}

// validateMetadataKey validates a single metadata key
func validateMetadataKey(key string) error {
	if key == "" {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage("metadata key cannot be empty")
	}

	if len(key) > 128 {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage("metadata key cannot exceed 128 characters")
	}

	// Keys travel as header names, so only printable ASCII without spaces
	for _, char := range key {
		if char <= 32 || char > 126 {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata key can only contain printable ASCII characters without spaces")
		}
	}

	return nil
}

// validateMetadataValue validates a single metadata value
func validateMetadataValue(value string) error {
	if len(value) > 2048 {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage("metadata value cannot exceed 2048 characters")
	}

	for _, char := range value {
		if !unicode.IsPrint(char) && char != '\n' && char != '\t' {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage("metadata value can only contain printable characters")
		}
	}

	return nil
}

// ValidateContentType validates that a content type looks like a MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil // Empty content type is allowed
	}

	slash := strings.IndexByte(contentType, '/')
	if slash <= 0 || slash == len(contentType)-1 {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	for _, char := range contentType {
		if !unicode.IsPrint(char) {
			return errors.NewError("validateContentType", errors.ErrInvalidInput).
				WithMessage("content type must be a valid MIME type")
		}
	}

	return nil
}
