// Package redact removes credentials from chunk text before it is embedded
// and stored, using the gitleaks rule set.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is one redacted secret.
type Finding struct {
	RuleID string
	Line   int
}

// Result is the outcome of redacting one text.
type Result struct {
	Text     string
	Findings []Finding
}

// Redactor is safe for concurrent use.
type Redactor struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// New builds a Redactor from the default gitleaks rules plus allow.
func New(allow *Allowlist) (*Redactor, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	if allow != nil && (len(allow.Regexes) > 0 || len(allow.StopWords) > 0) {
		al := &gitleaksconfig.Allowlist{
			Description: "tempora allowlist",
			StopWords:   allow.StopWords,
		}
		for _, p := range allow.Regexes {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAllowlist, p, err)
			}
			al.Regexes = append(al.Regexes, (*gitleaksregexp.Regexp)(re))
		}
		d.Config.Allowlists = append(d.Config.Allowlists, al)
	}
	return &Redactor{detector: d}, nil
}

// Redact replaces every detected secret in text with [REDACTED:<rule>].
func (r *Redactor) Redact(text string) Result {
	if text == "" {
		return Result{Text: text}
	}

	r.mu.Lock()
	found := r.detector.DetectString(text)
	r.mu.Unlock()

	if len(found) == 0 {
		return Result{Text: text}
	}

	// Longest secrets first so a secret containing another is replaced whole.
	sort.SliceStable(found, func(i, j int) bool { return len(found[i].Secret) > len(found[j].Secret) })

	res := Result{Findings: make([]Finding, 0, len(found))}
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, f.Secret, "[REDACTED:"+f.RuleID+"]")
		res.Findings = append(res.Findings, Finding{RuleID: f.RuleID, Line: f.StartLine})
	}
	res.Text = text
	return res
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool {
	return len(r.Findings) > 0
}
