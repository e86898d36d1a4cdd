package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SanitizeMetadata normalizes an arbitrary metadata map to the
// primitive-typed mapping the vector store requires (spec §4.10, invariant
// I1). Primitives pass through; lists are comma-joined; maps are
// stringified; anything else is coerced to its string form. Idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x) (R2).
func SanitizeMetadata(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool:
		return val
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val
	case float32, float64:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = fmt.Sprintf("%v", sanitizeValue(e))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return stringifyMap(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func stringifyMap(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s=%v", k, sanitizeValue(v)))
	}
	return strings.Join(parts, ", ")
}

// DocumentChunkID builds the id grammar for a chunk entry:
// "{document_id}_{chunk_id}".
func DocumentChunkID(documentID, chunkID string) string {
	return documentID + "_" + chunkID
}

// DocumentSummaryID builds the id grammar for a document's synthetic
// summary entry: "metadata_{document_id}".
func DocumentSummaryID(documentID string) string {
	return "metadata_" + documentID
}

// ConversationBatchID builds the id grammar for a persisted conversation
// batch: "conv_{ISO-timestamp}".
func ConversationBatchID(isoTimestamp string) string {
	return "conv_" + isoTimestamp
}

// GenerateDocumentID produces a stable id for a document when the caller
// supplied none. It incorporates a content hash of the file bytes so that
// re-ingesting byte-identical content naturally reuses the same id
// (supporting round-trip property R1), while distinct content sharing a
// file name gets a distinct id. When the file name has no base part (e.g.
// ".txt"), a random UUID stands in for it, so such ids are not reproducible.
func GenerateDocumentID(fileName string, content []byte) string {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])[:16]
	base := strings.TrimSuffix(fileName, filepathExt(fileName))
	base = strings.ReplaceAll(strings.ToLower(base), " ", "_")
	if base == "" {
		base = uuid.NewString()
	}
	return base + "_" + hash
}

func filepathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
