package core

import "fmt"

// Taxonomy names are semantic, not source-language identifiers (spec §7).
// Sentinel errors let callers use errors.Is; CoreError carries the name
// alongside the wrapped cause for structured logging.
var (
	ErrUnsupportedFormat    = fmt.Errorf("unsupported format")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrFileNotFound         = fmt.Errorf("file not found")
	ErrEncryptedPDF         = fmt.Errorf("encrypted pdf")
	ErrExtractionFailed     = fmt.Errorf("extraction failed")
	ErrEmbeddingUnavailable = fmt.Errorf("embedding unavailable")
	ErrVectorStoreError     = fmt.Errorf("vector store error")
	ErrMetadataTypeViolation = fmt.Errorf("metadata type violation")
)

// CoreError wraps a taxonomy sentinel with the underlying cause. Unwrap
// returns the sentinel so errors.Is(err, ErrUnsupportedFormat) works; the
// cause is retained only for its message.
type CoreError struct {
	Name     string
	Sentinel error
	Cause    error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Name, e.Cause)
	}
	return e.Name
}

func (e *CoreError) Unwrap() error {
	return e.Sentinel
}

func wrapErr(sentinel error, name string, cause error) error {
	return &CoreError{Name: name, Sentinel: sentinel, Cause: cause}
}
