package synth

import (
	"fmt"
	"time"

	"threatdash/internal/common"
	"threatdash/internal/threat"
)

const (
	jitterDegrees             = 5.0
	defaultExploitConfidence  = 0.7
	exploitTypePrefix         = "CVE Exploit: "
	fabricatedConfidenceFloor = 0.5
	fabricatedConfidenceCeil  = 0.99
)

// Source is a read-only view of a feed cache.
type Source[T any] interface {
	Snapshot() []T
}

type sourceBias int

const (
	preferHost sourceBias = iota
	preferVulnerability
)

var biasWeights = []weighted[sourceBias]{
	{preferVulnerability, 1},
	{preferHost, 2},
}

var (
	fabricatedTypes      = []string{"DDoS", "Phishing", "Malware", "Brute Force"}
	fabricatedSeverities = []common.Severity{common.SeverityLow, common.SeverityMedium, common.SeverityHigh}
)

// Synthesizer builds events from the current contents of the two feed
// caches. It never writes to them and is safe for concurrent use.
type Synthesizer struct {
	vulns Source[threat.VulnerabilityRecord]
	hosts Source[threat.BlacklistedHost]
	rng   *Rand
	now   func() time.Time
}

// New creates a Synthesizer. Either source may be nil and is then treated
// as empty; a nil rng is seeded from the runtime.
func New(vulns Source[threat.VulnerabilityRecord], hosts Source[threat.BlacklistedHost], rng *Rand) *Synthesizer {
	if rng == nil {
		rng = NewRand(nil)
	}
	return &Synthesizer{vulns: vulns, hosts: hosts, rng: rng, now: time.Now}
}

// Synthesize returns one event. With a sampled blacklist host the event is
// either a CVE exploit attributed to that host (one time in three, when CVEs
// are cached) or a host event labelled from its abuse categories. With no
// hosts cached every field is fabricated.
func (s *Synthesizer) Synthesize() Event {
	bias := choose(s.rng, biasWeights)
	hosts := snapshot(s.hosts)
	if len(hosts) == 0 {
		return s.Fabricate()
	}
	vulns := snapshot(s.vulns)

	host := pick(s.rng, hosts)
	loc := s.hostLocation(host.CountryCode)

	if bias == preferVulnerability && len(vulns) > 0 {
		return s.exploitEvent(pick(s.rng, vulns), host, loc)
	}
	return s.hostEvent(host, loc)
}

// Fabricate returns an event with every field random.
func (s *Synthesizer) Fabricate() Event {
	return Event{
		Timestamp:     s.now(),
		Type:          pick(s.rng, fabricatedTypes),
		SourceAddress: fmt.Sprintf("10.%d.%d.1", s.rng.IntN(256), s.rng.IntN(256)),
		Severity:      pick(s.rng, fabricatedSeverities),
		Confidence:    round(s.rng.Uniform(fabricatedConfidenceFloor, fabricatedConfidenceCeil), 2),
		Location:      s.randomLocation(),
		Class:         ClassFabricated,
	}
}

func (s *Synthesizer) exploitEvent(v threat.VulnerabilityRecord, h threat.BlacklistedHost, loc Location) Event {
	return Event{
		Timestamp:     s.now(),
		Type:          exploitTypePrefix + v.ID,
		SourceAddress: h.Address,
		Severity:      v.Severity,
		Confidence:    ExploitConfidence(v.Score),
		Location:      loc,
		CountryCode:   h.CountryCode,
		Detail:        v.Description,
		Class:         ClassExploit,
	}
}

func (s *Synthesizer) hostEvent(h threat.BlacklistedHost, loc Location) Event {
	return Event{
		Timestamp:     s.now(),
		Type:          ThreatType(h.Categories),
		SourceAddress: h.Address,
		Severity:      common.SeverityFromConfidence(h.ConfidenceScore),
		Confidence:    round(float64(h.ConfidenceScore)/100, 2),
		Location:      loc,
		CountryCode:   h.CountryCode,
		Class:         ClassHost,
	}
}

// ExploitConfidence converts a CVSS base score (0-10) to a 0-1 confidence.
func ExploitConfidence(score *float64) float64 {
	if score == nil {
		return defaultExploitConfidence
	}
	return max(0, min(1, round(*score/10, 2)))
}

func (s *Synthesizer) hostLocation(countryCode string) Location {
	base, _ := Centroid(countryCode)
	return clampLocation(Location{
		Latitude:  round(base.Latitude+s.rng.Uniform(-jitterDegrees, jitterDegrees), 4),
		Longitude: round(base.Longitude+s.rng.Uniform(-jitterDegrees, jitterDegrees), 4),
	})
}

func (s *Synthesizer) randomLocation() Location {
	return Location{
		Latitude:  round(s.rng.Uniform(-90, 90), 4),
		Longitude: round(s.rng.Uniform(-180, 180), 4),
	}
}

func snapshot[T any](src Source[T]) []T {
	if src == nil {
		return nil
	}
	return src.Snapshot()
}
