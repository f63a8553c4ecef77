// Package dnsname generates plausible-looking domain names of an exact
// requested length, grounded on
// original_source/tools/ft-generator/src/domainnamegenerator.{h,cpp}.
// There is deliberately no process-global singleton here (§9 "Singletons"):
// callers thread in their own *ftrand.Rand, one per flow.
package dnsname

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CESNET/ft-generator/internal/ftrand"
)

const (
	minTotalLen = 4
	maxTotalLen = 255
	maxLabelLen = 63
)

var tlds = []string{"com", "net", "org", "io", "co"}

// words is a small size-indexed vocabulary; wordsByLen buckets it by
// length so Generate can pick the longest word that still fits a budget.
var words = []string{
	"a", "an", "is", "it", "at", "by", "in", "on", "we", "go",
	"web", "app", "api", "dev", "net", "sys", "box", "log", "fix", "lab",
	"cloud", "proxy", "cache", "store", "route", "stats", "event", "topic",
	"server", "client", "engine", "signal", "search", "manage", "report",
	"service", "gateway", "network", "backend", "session", "monitor",
	"platform", "registry", "pipeline", "metadata", "resource",
}

var wordsByLen = buildWordsByLen(words)

func buildWordsByLen(ws []string) map[int][]string {
	m := make(map[int][]string)
	for _, w := range ws {
		m[len(w)] = append(m[len(w)], w)
	}
	for k := range m {
		sort.Strings(m[k])
	}
	return m
}

// Generate returns a domain name of exactly total bytes, matching
// `((a-z0-9]+-)*[a-z0-9]+\.)+[a-z0-9]+`: one or more dot-separated labels
// (each a run of words joined by hyphens, padded with random lowercase
// letters), followed by a short TLD label.
func Generate(r *ftrand.Rand, total int) (string, error) {
	if total < minTotalLen || total > maxTotalLen {
		return "", fmt.Errorf("dnsname: total length %d out of range [%d,%d]", total, minTotalLen, maxTotalLen)
	}

	order := r.Perm(len(tlds))
	for _, i := range order {
		tld := tlds[i]
		hostLen := total - len(tld) - 1
		if hostLen < 1 {
			continue
		}
		labelLens := splitLabelLens(hostLen)
		labels := make([]string, len(labelLens))
		for li, ll := range labelLens {
			labels[li] = fillLabel(r, ll)
		}
		return strings.Join(labels, ".") + "." + tld, nil
	}
	return "", fmt.Errorf("dnsname: no tld fits total length %d", total)
}

// splitLabelLens breaks hostLen bytes (dots included in the count between
// labels) into a sequence of label lengths, each in [1,maxLabelLen],
// summing with (k-1) dot separators to exactly hostLen.
func splitLabelLens(hostLen int) []int {
	// Smallest k such that k labels of up to maxLabelLen bytes, joined by
	// k-1 dots, can hold hostLen bytes: k*maxLabelLen + (k-1) >= hostLen,
	// i.e. k >= ceil((hostLen+1) / (maxLabelLen+1)).
	k := (hostLen + 1 + maxLabelLen) / (maxLabelLen + 1)
	if k < 1 {
		k = 1
	}

	totalLabelChars := hostLen - (k - 1)
	lens := make([]int, k)
	remaining := totalLabelChars
	for i := 0; i < k; i++ {
		labelsLeft := k - i
		maxForThis := remaining - (labelsLeft - 1)
		if maxForThis > maxLabelLen {
			maxForThis = maxLabelLen
		}
		lens[i] = maxForThis
		remaining -= maxForThis
	}
	return lens
}

// fillLabel builds one label of exactly ll bytes: hyphen-joined words for
// as long as a word still fits, then random lowercase-letter padding.
func fillLabel(r *ftrand.Rand, ll int) string {
	var parts []string
	remaining := ll
	for remaining > 0 {
		budget := remaining
		if len(parts) > 0 {
			budget-- // the hyphen before the next word
		}
		if budget <= 0 {
			break
		}
		w := pickWord(r, budget)
		if w == "" {
			break
		}
		parts = append(parts, w)
		remaining -= len(w)
		if len(parts) > 1 {
			remaining-- // account for the hyphen just spent
		}
	}

	label := strings.Join(parts, "-")
	if pad := ll - len(label); pad > 0 {
		label += string(randomLetters(r, pad))
	}
	return label
}

// pickWord returns the longest word at most maxLen bytes long, chosen
// uniformly among ties, or "" if none fits.
func pickWord(r *ftrand.Rand, maxLen int) string {
	if maxLen > maxLabelLen {
		maxLen = maxLabelLen
	}
	for l := maxLen; l >= 1; l-- {
		if bucket := wordsByLen[l]; len(bucket) > 0 {
			return bucket[r.Choice(len(bucket))]
		}
	}
	return ""
}

func randomLetters(r *ftrand.Rand, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('a' + r.Choice(26))
	}
	return out
}
