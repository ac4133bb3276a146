package queue

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// NewJobID returns a "job_" + 12 lowercase hex char identifier, matching
// job_service.py's f"job_{uuid.uuid4().hex[:12]}".
func NewJobID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	return "job_" + hex.EncodeToString(buf), nil
}

// DedupeKey computes the SHA-256 deduplication key over a deterministic
// encoding of the job's identifying parameters, matching
// JobRecord.compute_dedupe_key: resolved path, include_code, operation,
// and sorted include/exclude patterns joined with "|".
func DedupeKey(folderPath string, includeCode bool, operation string, include, exclude []string) string {
	resolved, err := filepath.Abs(folderPath)
	if err != nil {
		resolved = folderPath
	}

	incSorted := append([]string(nil), include...)
	sort.Strings(incSorted)
	excSorted := append([]string(nil), exclude...)
	sort.Strings(excSorted)

	parts := []string{
		resolved,
		fmt.Sprintf("%t", includeCode),
		operation,
		strings.Join(incSorted, ","),
		strings.Join(excSorted, ","),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
