package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"threatdash/internal/stream"
	"threatdash/internal/synth"
	"threatdash/internal/threat"
)

type upstream struct {
	nvd, abuse       *httptest.Server
	nvdCalls, aCalls atomic.Int32
}

func newUpstream(t *testing.T, cves int) *upstream {
	t.Helper()
	u := &upstream{}
	u.nvd = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.nvdCalls.Add(1)
		var items []string
		for i := 0; i < cves; i++ {
			items = append(items, fmt.Sprintf(`{"cve": {"id": "CVE-2025-%04d", "descriptions": [{"lang": "en", "value": "issue %d"}],
				"metrics": {"cvssMetricV31": [{"cvssData": {"baseScore": 8.1, "baseSeverity": "HIGH"}}]}}}`, i, i))
		}
		fmt.Fprintf(w, `{"vulnerabilities": [%s]}`, strings.Join(items, ","))
	}))
	u.abuse = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.aCalls.Add(1)
		w.Write([]byte(`{"data": [{"ipAddress": "203.0.113.7", "countryCode": "RU", "abuseConfidenceScore": 100, "categories": [18]}]}`))
	}))
	t.Cleanup(func() {
		u.nvd.Close()
		u.abuse.Close()
	})
	return u
}

func newTestServer(t *testing.T, u *upstream, abuseKey string, demo bool) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &Config{
		AllowedOrigins:  []string{"http://localhost:3000"},
		DemoMode:        demo,
		NVDURL:          u.nvd.URL,
		AbuseIPDBURL:    u.abuse.URL,
		AbuseIPDBAPIKey: abuseKey,
	}
	vulns := threat.NewFeed[threat.VulnerabilityRecord](threat.NewNVDClient(cfg.NVDURL, ""), threat.VulnerabilityWindow)
	hosts := threat.NewFeed[threat.BlacklistedHost](threat.NewAbuseIPDBClient(cfg.AbuseIPDBURL, cfg.AbuseIPDBAPIKey), threat.BlacklistWindow)
	s := synth.New(vulns.Cache(), hosts.Cache(), nil)
	pub := stream.New(s, stream.Config{
		Demo:           demo,
		MinInterval:    5 * time.Millisecond,
		MaxInterval:    10 * time.Millisecond,
		AllowedOrigins: cfg.AllowedOrigins,
	}, vulns, hosts)

	srv := New(cfg, vulns, hosts, s, pub)
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		pub.Close()
		hs.Close()
	})
	return srv, hs
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp
}

func TestStatusReportsCacheCounts(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 3)
	_, hs := newTestServer(t, u, "key", false)

	var st statusResponse
	getJSON(t, hs.URL+"/", &st)
	if st.Status != "Online" || st.Version != Version {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.DataSources.CVEsLoaded != 0 || st.DataSources.MaliciousIPsLoaded != 0 {
		t.Fatalf("Expected empty caches, got %+v", st.DataSources)
	}

	var cves struct {
		Count int `json:"count"`
	}
	getJSON(t, hs.URL+"/api/cves", &cves)

	getJSON(t, hs.URL+"/", &st)
	if st.DataSources.CVEsLoaded != 3 {
		t.Fatalf("Expected 3 CVEs after lazy fetch, got %d", st.DataSources.CVEsLoaded)
	}
	if u.aCalls.Load() != 0 {
		t.Fatalf("status endpoint should not fetch, got %d blacklist calls", u.aCalls.Load())
	}
}

func TestCVEsLazyFetchAndPreview(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 25)
	_, hs := newTestServer(t, u, "key", false)

	var body struct {
		Count int                          `json:"count"`
		CVEs  []threat.VulnerabilityRecord `json:"cves"`
	}
	for i := 0; i < 2; i++ {
		resp := getJSON(t, hs.URL+"/api/cves", &body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
	}
	if body.Count != 25 || len(body.CVEs) != previewSize {
		t.Fatalf("Expected count 25 with %d previewed, got %d/%d", previewSize, body.Count, len(body.CVEs))
	}
	if body.CVEs[0].ID != "CVE-2025-0000" || body.CVEs[0].Severity != "High" {
		t.Fatalf("unexpected first CVE %+v", body.CVEs[0])
	}
	if u.nvdCalls.Load() != 1 {
		t.Fatalf("Expected one upstream call, got %d", u.nvdCalls.Load())
	}
}

func TestMaliciousIPsWithoutKey(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 1)
	_, hs := newTestServer(t, u, "", false)

	var body struct {
		Count int               `json:"count"`
		IPs   []json.RawMessage `json:"ips"`
	}
	getJSON(t, hs.URL+"/api/malicious-ips", &body)
	if body.Count != 0 || body.IPs == nil || len(body.IPs) != 0 {
		t.Fatalf("Expected empty list, got %+v", body)
	}
	if u.aCalls.Load() != 0 {
		t.Fatalf("Expected no upstream call without key, got %d", u.aCalls.Load())
	}
}

func TestMaliciousIPsWithKey(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 1)
	_, hs := newTestServer(t, u, "key", false)

	var body struct {
		Count int                      `json:"count"`
		IPs   []threat.BlacklistedHost `json:"ips"`
	}
	getJSON(t, hs.URL+"/api/malicious-ips", &body)
	if body.Count != 1 || body.IPs[0].Address != "203.0.113.7" || body.IPs[0].CountryCode != "RU" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSampleEvent(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 2)
	_, hs := newTestServer(t, u, "key", false)

	var ev synth.Event
	getJSON(t, hs.URL+"/api/threats/sample", &ev)
	if ev.SourceAddress != "203.0.113.7" || ev.CountryCode != "RU" {
		t.Fatalf("Expected event from cached host, got %+v", ev)
	}
	if ev.Type != "Brute Force Attack" && !strings.HasPrefix(ev.Type, "CVE Exploit: ") {
		t.Fatalf("unexpected type %q", ev.Type)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 0)
	_, hs := newTestServer(t, u, "", false)

	req, _ := http.NewRequest(http.MethodGet, hs.URL+"/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Expected allow-origin header, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Expected credentials header, got %q", got)
	}

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Expected no allow-origin header, got %q", got)
	}
}

func TestStreamEndToEndWithEmptyCaches(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 4)
	_, hs := newTestServer(t, u, "key", false)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws/threats"
	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 5; i++ {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var ev synth.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if ev.Type == "" || ev.Confidence < 0 || ev.Confidence > 1 {
			t.Fatalf("malformed event %+v", ev)
		}
	}
	if u.nvdCalls.Load() != 1 || u.aCalls.Load() != 1 {
		t.Fatalf("Expected one lazy fetch per feed, got nvd=%d abuse=%d", u.nvdCalls.Load(), u.aCalls.Load())
	}
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 0)
	_, hs := newTestServer(t, u, "", true)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws/threats"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %v", resp)
	}
}

func TestObserveRefreshUpdatesHealth(t *testing.T) {
	t.Parallel()

	u := newUpstream(t, 0)
	srv, _ := newTestServer(t, u, "", false)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%s): %v", service, err)
		}
		return resp.GetStatus()
	}

	if got := check("threatdash.nvd"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("Expected NOT_SERVING before refresh, got %v", got)
	}
	srv.ObserveRefresh("nvd", 12, nil)
	if got := check("threatdash.nvd"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("Expected SERVING after refresh, got %v", got)
	}
	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("Expected overall SERVING, got %v", got)
	}
}
