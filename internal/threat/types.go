package threat

import (
	"context"
	"errors"

	"threatdash/internal/common"
)

// ErrNoCredential is returned by a fetcher that needs an API key it was not
// given. Callers treat it as a skip, not a failure.
var ErrNoCredential = errors.New("threat: feed credential not configured")

// VulnerabilityRecord is one CVE entry from the vulnerability feed.
type VulnerabilityRecord struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Severity    common.Severity `json:"severity"`
	Score       *float64        `json:"score"`
	Published   string          `json:"published"`
}

// BlacklistedHost is one address reported by the IP blacklist feed.
type BlacklistedHost struct {
	Address         string `json:"ipAddress"`
	CountryCode     string `json:"country"`
	ConfidenceScore int    `json:"confidence"`
	Categories      []int  `json:"categories"`
}

// Fetcher pulls a full record set from one external feed.
type Fetcher[T any] interface {
	Name() string
	Fetch(ctx context.Context) ([]T, error)
}
