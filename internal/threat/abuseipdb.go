package threat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultAbuseIPDBURL = "https://api.abuseipdb.com/api/v2/blacklist"

	blacklistConfidenceMin = 75
	blacklistLimit         = 100
)

// AbuseIPDBClient fetches the AbuseIPDB blacklist. It requires an API key.
type AbuseIPDBClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAbuseIPDBClient builds a client. An empty baseURL selects
// DefaultAbuseIPDBURL. With an empty apiKey every fetch returns
// ErrNoCredential without contacting the provider.
func NewAbuseIPDBClient(baseURL, apiKey string) *AbuseIPDBClient {
	if baseURL == "" {
		baseURL = DefaultAbuseIPDBURL
	}
	return &AbuseIPDBClient{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient()}
}

func (a *AbuseIPDBClient) Name() string { return "abuseipdb" }

func (a *AbuseIPDBClient) Fetch(ctx context.Context) ([]BlacklistedHost, error) {
	return a.FetchBlacklist(ctx)
}

// FetchBlacklist requests up to 100 entries with confidence of at least 75.
func (a *AbuseIPDBClient) FetchBlacklist(ctx context.Context) ([]BlacklistedHost, error) {
	if a.apiKey == "" {
		return nil, ErrNoCredential
	}

	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("abuseipdb: parse url: %w", err)
	}
	q := u.Query()
	q.Set("confidenceMinimum", strconv.Itoa(blacklistConfidenceMin))
	q.Set("limit", strconv.Itoa(blacklistLimit))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Key", a.apiKey)
	header.Set("Accept", "application/json")

	var payload abuseResponse
	if err := getJSON(ctx, a.client, u.String(), header, &payload); err != nil {
		return nil, fmt.Errorf("abuseipdb: %w", err)
	}

	hosts := make([]BlacklistedHost, 0, len(payload.Data))
	for _, raw := range payload.Data {
		var e abuseEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			slog.Debug("skipping blacklist entry", "err", err)
			continue
		}
		addr, err := netip.ParseAddr(strings.TrimSpace(e.IPAddress))
		if err != nil {
			slog.Debug("skipping blacklist entry", "address", e.IPAddress, "err", err)
			continue
		}
		hosts = append(hosts, BlacklistedHost{
			Address:         addr.String(),
			CountryCode:     countryOrUnknown(e.CountryCode),
			ConfidenceScore: clampScore(parseScore(e.AbuseConfidenceScore)),
			Categories:      normalizeCategories(parseCategories(e.Categories)),
		})
	}
	return hosts, nil
}

// Entries are decoded one at a time so a malformed entry or field does not
// fail the whole fetch.
type abuseResponse struct {
	Data []json.RawMessage `json:"data"`
}

type abuseEntry struct {
	IPAddress            string          `json:"ipAddress"`
	CountryCode          string          `json:"countryCode"`
	AbuseConfidenceScore json.RawMessage `json:"abuseConfidenceScore"`
	Categories           json.RawMessage `json:"categories"`
}

// parseScore accepts a JSON number or numeric string, rounded to the nearest
// integer. Anything else is 0.
func parseScore(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var str string
		if json.Unmarshal(raw, &str) != nil {
			return 0
		}
		raw = []byte(strings.TrimSpace(str))
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(max(-1, min(101, v))))
}

// parseCategories keeps the integral codes of a JSON array and drops
// everything else.
func parseCategories(raw json.RawMessage) []int {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	codes := make([]int, 0, len(items))
	for _, item := range items {
		var n json.Number
		if json.Unmarshal(item, &n) != nil {
			continue
		}
		if c, err := strconv.Atoi(n.String()); err == nil {
			codes = append(codes, c)
		}
	}
	return codes
}

func countryOrUnknown(cc string) string {
	cc = strings.ToUpper(strings.TrimSpace(cc))
	if cc == "" {
		return "Unknown"
	}
	return cc
}

func clampScore(s int) int {
	return max(0, min(100, s))
}

// normalizeCategories returns the codes as a sorted set.
func normalizeCategories(codes []int) []int {
	out := slices.Clone(codes)
	if out == nil {
		return []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
