package synth

import (
	"math/rand/v2"
	"testing"
)

func TestThreatType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		codes []int
		want  string
	}{
		{nil, "Suspicious Activity"},
		{[]int{}, "Suspicious Activity"},
		{[]int{99}, "Suspicious Activity"},
		{[]int{4, 15}, "DDoS Attack"},
		{[]int{15, 4}, "DDoS Attack"},
		{[]int{15}, "Hacking Attempt"},
		{[]int{21, 20}, "Compromised Host"},
		{[]int{5}, "Brute Force Attack"},
		{[]int{18, 22}, "Brute Force Attack"},
		{[]int{11, 14}, "Phishing"},
		{[]int{14}, "Port Scan"},
		{[]int{2}, "DNS Attack"},
		{[]int{23, 22}, "IoT Attack"},
		{[]int{22}, "SSH Attack"},
		{[]int{9, 10}, "Proxy/Tor Node"},
		{[]int{12}, "Web Spam"},
		{[]int{19}, "Malicious Bot"},
		{[]int{17}, "Email Spoofing"},
		{[]int{8}, "Fraud Attempt"},
		{[]int{6}, "Ping of Death"},
		{[]int{16, 7}, "SQL Injection"},
	}
	for _, tc := range cases {
		if got := ThreatType(tc.codes); got != tc.want {
			t.Errorf("ThreatType(%v) = %q, want %q", tc.codes, got, tc.want)
		}
	}
}

func TestThreatTypeOrderIndependent(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(3, 4))
	codes := []int{6, 3, 17, 19, 10, 9, 22, 23, 1, 14, 7, 16, 18, 21, 20, 15, 4}
	for i := 0; i < 50; i++ {
		r.Shuffle(len(codes), func(a, b int) { codes[a], codes[b] = codes[b], codes[a] })
		if got := ThreatType(codes); got != "DDoS Attack" {
			t.Fatalf("ThreatType(%v) = %q, want DDoS Attack", codes, got)
		}
	}
}

func TestChooseRespectsWeights(t *testing.T) {
	t.Parallel()

	r := NewRand(rand.NewPCG(5, 6))
	const draws = 30000
	vuln := 0
	for i := 0; i < draws; i++ {
		if choose(r, biasWeights) == preferVulnerability {
			vuln++
		}
	}
	frac := float64(vuln) / draws
	if frac < 0.31 || frac > 0.36 {
		t.Fatalf("vulnerability bias fraction %.3f, want about 1/3", frac)
	}
}
