package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Engine applies deterministic substitutions to transcript text before it
// is persisted. Rules come from a plain-text file with two line forms:
//
//	spoken phrase => replacement
//	s/pattern/replacement/flags
//
// Literal rules match case-insensitively. Regex rules accept the flags i
// (case-insensitive, default on) and g (replace all occurrences).
type Engine struct {
	rules     []rule
	loopLimit int
}

type rule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

// NewEngine loads rules from a file. A missing or empty path yields an
// engine that passes text through unchanged.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}
	engine := &Engine{loopLimit: loopLimit}

	if strings.TrimSpace(path) == "" {
		return engine, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	for index, raw := range strings.Split(string(contents), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseRule(line)
		if err != nil {
			return nil, fmt.Errorf("rules file %q line %d: %w", path, index+1, err)
		}
		engine.rules = append(engine.rules, parsed)
	}
	return engine, nil
}

// Apply transforms text, re-running the rule set until it reaches a fixed
// point or the iteration limit.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, r := range e.rules {
			next := r.apply(result)
			if next != result {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

func (r rule) apply(input string) string {
	if r.global {
		return r.re.ReplaceAllString(input, r.replacement)
	}
	loc := r.re.FindStringIndex(input)
	if loc == nil {
		return input
	}
	match := input[loc[0]:loc[1]]
	return input[:loc[0]] + r.re.ReplaceAllString(match, r.replacement) + input[loc[1]:]
}

func parseRule(line string) (rule, error) {
	if strings.HasPrefix(line, "s/") {
		return parseRegexRule(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteralRule(line)
	}
	return rule{}, errors.New("unsupported rule format")
}

func parseLiteralRule(line string) (rule, error) {
	parts := strings.SplitN(line, "=>", 2)
	from := strings.TrimSpace(parts[0])
	to := strings.TrimSpace(parts[1])
	if from == "" {
		return rule{}, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return rule{}, fmt.Errorf("invalid literal source: %w", err)
	}
	return rule{re: re, replacement: to, global: true}, nil
}

func parseRegexRule(line string) (rule, error) {
	body := line[2:]
	fields := splitUnescaped(body, '/')
	if len(fields) < 2 || len(fields) > 3 {
		return rule{}, errors.New("regex rule must be s/pattern/replacement/flags")
	}

	pattern := fields[0]
	replacement := fields[1]
	ignoreCase := true
	global := false
	if len(fields) == 3 {
		for _, flag := range fields[2] {
			switch flag {
			case 'i':
				ignoreCase = true
			case 'g':
				global = true
			default:
				return rule{}, fmt.Errorf("unsupported regex flag %q", flag)
			}
		}
	}

	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return rule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return rule{re: re, replacement: replacement, global: global}, nil
}

func splitUnescaped(s string, delim byte) []string {
	var fields []string
	var current strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			current.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			current.WriteByte(c)
			escaped = true
			continue
		}
		if c == delim {
			fields = append(fields, current.String())
			current.Reset()
			continue
		}
		current.WriteByte(c)
	}
	fields = append(fields, current.String())
	return fields
}
