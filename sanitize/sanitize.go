package sanitize

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrRejected is returned by Check in strict mode when injection was found.
var ErrRejected = errors.New("input rejected")

type Kind string

const (
	KindHTML     Kind = "html"
	KindSQL      Kind = "sql"
	KindOperator Kind = "operator"
	KindDepth    Kind = "depth"
)

// Finding locates one issue. Path uses dots for object keys and [i] for
// array elements.
type Finding struct {
	Path string
	Kind Kind
}

type Report struct {
	Findings []Finding
}

func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Injection reports whether any finding is more than stripped markup.
func (r Report) Injection() bool {
	for _, f := range r.Findings {
		if f.Kind != KindHTML {
			return true
		}
	}
	return false
}

// Paths returns the distinct finding paths in order.
func (r Report) Paths() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if _, ok := seen[f.Path]; ok {
			continue
		}
		seen[f.Path] = struct{}{}
		out = append(out, f.Path)
	}
	return out
}

type Options struct {
	// Strict makes Check fail on any injection finding instead of
	// returning the cleaned tree.
	Strict bool
	// Preserve lists object keys whose string values pass through verbatim,
	// such as passwords and one-time codes. They are still scanned.
	Preserve []string
	MaxDepth int
}

func DefaultOptions() Options {
	return Options{
		Preserve: []string{"password", "currentPassword", "newPassword", "token", "tempToken", "refreshToken", "code"},
		MaxDepth: 32,
	}
}

var sqlPattern = regexp.MustCompile(`(?i)(\bunion\b[\s\S]*\bselect\b|\bselect\b[\s\S]+\bfrom\b|\binsert\s+into\b|\bdelete\s+from\b|\bdrop\s+(table|database)\b|\bupdate\s+\w+\s+set\b|\bexec(ute)?\s*\(|'\s*or\s+'?\d+'?\s*=\s*'?\d+|;\s*--|/\*)`)

type Sanitizer struct {
	opts     Options
	policy   *bluemonday.Policy
	preserve map[string]struct{}
}

func New(opts Options) *Sanitizer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	preserve := make(map[string]struct{}, len(opts.Preserve))
	for _, k := range opts.Preserve {
		preserve[k] = struct{}{}
	}
	return &Sanitizer{
		opts:     opts,
		policy:   bluemonday.StrictPolicy(),
		preserve: preserve,
	}
}

func (s *Sanitizer) Strict() bool { return s.opts.Strict }

// Value returns a sanitized copy of v and what was found. v may be any tree
// produced by encoding/json decoding into an any.
func (s *Sanitizer) Value(v any) (any, Report) {
	var rep Report
	out := s.walk(v, "", false, 0, &rep)
	return out, rep
}

// Check is Value with the strict-mode policy applied.
func (s *Sanitizer) Check(v any) (any, Report, error) {
	out, rep := s.Value(v)
	if s.opts.Strict && rep.Injection() {
		return nil, rep, ErrRejected
	}
	return out, rep, nil
}

// String sanitizes a single value.
func (s *Sanitizer) String(v string) (string, []Kind) {
	return s.cleanString(v, false)
}

func (s *Sanitizer) walk(v any, path string, preserve bool, depth int, rep *Report) any {
	if depth > s.opts.MaxDepth {
		rep.Findings = append(rep.Findings, Finding{Path: path, Kind: KindDepth})
		return nil
	}

	switch t := v.(type) {
	case string:
		out, kinds := s.cleanString(t, preserve)
		for _, k := range kinds {
			rep.Findings = append(rep.Findings, Finding{Path: path, Kind: k})
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			p := join(path, k)
			if isOperatorKey(k) {
				rep.Findings = append(rep.Findings, Finding{Path: p, Kind: KindOperator})
				continue
			}
			_, keep := s.preserve[k]
			out[k] = s.walk(child, p, keep, depth+1, rep)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = s.walk(child, path+"["+strconv.Itoa(i)+"]", preserve, depth+1, rep)
		}
		return out
	default:
		return v
	}
}

func (s *Sanitizer) cleanString(v string, preserve bool) (string, []Kind) {
	var kinds []Kind
	if sqlPattern.MatchString(v) {
		kinds = append(kinds, KindSQL)
	}
	if preserve || !strings.ContainsAny(v, "<>") {
		return v, kinds
	}
	if out := s.policy.Sanitize(v); out != v {
		return out, append(kinds, KindHTML)
	}
	return v, kinds
}

func isOperatorKey(k string) bool {
	return strings.HasPrefix(k, "$") || strings.Contains(k, ".")
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
