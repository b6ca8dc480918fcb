package robots

import "strings"

// pattern is a compiled robots.txt path or user-agent pattern. It matches
// at the start of the subject only; "*" stands for any sequence and a
// trailing "$" pins the match to the end of the subject.
type pattern struct {
	source    string
	segments  []string
	anchorEnd bool
	never     bool
}

func compilePattern(value string) pattern {
	value = strings.TrimSpace(value)
	if value == "" {
		return pattern{never: true}
	}
	p := pattern{source: value}
	if strings.HasSuffix(value, "$") {
		p.anchorEnd = true
		value = strings.TrimSuffix(value, "$")
	}
	p.segments = strings.Split(value, "*")
	return p
}

// matchAll is the pattern in effect before any User-agent line
var matchAll = compilePattern("*")

func (p pattern) match(subject string) bool {
	if p.never {
		return false
	}

	first := p.segments[0]
	if !strings.HasPrefix(subject, first) {
		return false
	}
	pos := len(first)
	if len(p.segments) == 1 {
		return !p.anchorEnd || pos == len(subject)
	}

	last := len(p.segments) - 1
	for _, seg := range p.segments[1:last] {
		idx := strings.Index(subject[pos:], seg)
		if idx < 0 {
			return false
		}
		pos += idx + len(seg)
	}

	tail := p.segments[last]
	if p.anchorEnd {
		return len(subject)-len(tail) >= pos && strings.HasSuffix(subject, tail)
	}
	return strings.Contains(subject[pos:], tail)
}
