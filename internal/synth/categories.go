package synth

// DefaultThreatType is used when no category code matches.
const DefaultThreatType = "Suspicious Activity"

// categoryTable maps AbuseIPDB category codes to labels. Order is priority:
// the first row with any matching code wins.
var categoryTable = []struct {
	codes []int
	label string
}{
	{[]int{4}, "DDoS Attack"},
	{[]int{15}, "Hacking Attempt"},
	{[]int{20}, "Compromised Host"},
	{[]int{21}, "Web Application Attack"},
	{[]int{18, 5}, "Brute Force Attack"},
	{[]int{16}, "SQL Injection"},
	{[]int{7, 11}, "Phishing"},
	{[]int{14}, "Port Scan"},
	{[]int{1, 2}, "DNS Attack"},
	{[]int{23}, "IoT Attack"},
	{[]int{22}, "SSH Attack"},
	{[]int{9}, "Proxy/Tor Node"},
	{[]int{10, 12}, "Web Spam"},
	{[]int{19}, "Malicious Bot"},
	{[]int{17}, "Email Spoofing"},
	{[]int{3, 8}, "Fraud Attempt"},
	{[]int{6}, "Ping of Death"},
}

// ThreatType returns the label for a set of category codes. The result does
// not depend on the order of codes.
func ThreatType(codes []int) string {
	if len(codes) == 0 {
		return DefaultThreatType
	}
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	for _, row := range categoryTable {
		for _, c := range row.codes {
			if _, ok := set[c]; ok {
				return row.label
			}
		}
	}
	return DefaultThreatType
}
