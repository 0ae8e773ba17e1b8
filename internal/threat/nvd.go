package threat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"threatdash/internal/common"
)

const (
	DefaultNVDURL = "https://services.nvd.nist.gov/rest/json/cves/2.0/"

	nvdPageSize       = 50
	maxDescriptionLen = 200
	noDescription     = "No description available"
)

// NVDClient fetches the most recent page of CVEs from the NVD 2.0 API.
type NVDClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewNVDClient builds a client. An empty baseURL selects DefaultNVDURL; the
// API key is optional and only raises the provider's rate limit.
func NewNVDClient(baseURL, apiKey string) *NVDClient {
	if baseURL == "" {
		baseURL = DefaultNVDURL
	}
	return &NVDClient{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient()}
}

func (n *NVDClient) Name() string { return "nvd" }

func (n *NVDClient) Fetch(ctx context.Context) ([]VulnerabilityRecord, error) {
	return n.FetchVulnerabilities(ctx)
}

// FetchVulnerabilities requests one page of 50 CVEs starting at offset 0.
func (n *NVDClient) FetchVulnerabilities(ctx context.Context) ([]VulnerabilityRecord, error) {
	u, err := url.Parse(n.baseURL)
	if err != nil {
		return nil, fmt.Errorf("nvd: parse url: %w", err)
	}
	q := u.Query()
	q.Set("resultsPerPage", strconv.Itoa(nvdPageSize))
	q.Set("startIndex", "0")
	u.RawQuery = q.Encode()

	header := http.Header{}
	if n.apiKey != "" {
		header.Set("apiKey", n.apiKey)
	}

	var payload nvdResponse
	if err := getJSON(ctx, n.client, u.String(), header, &payload); err != nil {
		return nil, fmt.Errorf("nvd: %w", err)
	}

	records := make([]VulnerabilityRecord, 0, len(payload.Vulnerabilities))
	for _, item := range payload.Vulnerabilities {
		records = append(records, item.CVE.record())
	}
	return records, nil
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVE struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		V31 []nvdMetric `json:"cvssMetricV31"`
		V30 []nvdMetric `json:"cvssMetricV30"`
		V2  []nvdMetric `json:"cvssMetricV2"`
	} `json:"metrics"`
}

// nvdMetric covers both layouts: v3.x keeps baseSeverity inside cvssData,
// v2 keeps it on the metric itself.
type nvdMetric struct {
	BaseSeverity string `json:"baseSeverity"`
	CVSSData     struct {
		BaseScore    *float64 `json:"baseScore"`
		BaseSeverity string   `json:"baseSeverity"`
	} `json:"cvssData"`
}

func (c nvdCVE) record() VulnerabilityRecord {
	rec := VulnerabilityRecord{
		ID:          c.ID,
		Description: truncate(c.description(), maxDescriptionLen),
		Severity:    common.SeverityUnknown,
		Published:   c.Published,
	}
	if rec.ID == "" {
		rec.ID = "N/A"
	}

	// v3.1 is preferred, then v3.0, then v2.
	for _, metrics := range [][]nvdMetric{c.Metrics.V31, c.Metrics.V30, c.Metrics.V2} {
		if len(metrics) == 0 {
			continue
		}
		m := metrics[0]
		rec.Score = m.CVSSData.BaseScore
		sev := m.CVSSData.BaseSeverity
		if sev == "" {
			sev = m.BaseSeverity
		}
		rec.Severity = common.ParseSeverity(sev)
		break
	}
	return rec
}

func (c nvdCVE) description() string {
	for _, d := range c.Descriptions {
		if d.Lang == "en" && d.Value != "" {
			return d.Value
		}
	}
	if len(c.Descriptions) > 0 && c.Descriptions[0].Value != "" {
		return c.Descriptions[0].Value
	}
	return noDescription
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
