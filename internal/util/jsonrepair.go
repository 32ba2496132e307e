package util

import (
	"strings"
)

// RepairJSON attempts minimal fixups to coerce model output into valid JSON:
// it strips markdown code fences (also when prose surrounds them), trims
// whitespace and cuts the text down to the outermost JSON object or array.
// Returns the possibly repaired string and true if modified.
func RepairJSON(s string) (string, bool) {
	original := s
	s = strings.TrimSpace(s)

	if open := strings.Index(s, "```"); open >= 0 {
		rest := s[open+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
			if strings.HasPrefix(strings.ToLower(s), "json") {
				s = strings.TrimSpace(s[4:])
			}
		}
	}

	// Heuristic, not a parser: first opening bracket to last closing one.
	idxObj := strings.IndexByte(s, '{')
	idxArr := strings.IndexByte(s, '[')
	start := -1
	if idxObj >= 0 && (idxArr < 0 || idxObj < idxArr) {
		start = idxObj
	} else if idxArr >= 0 {
		start = idxArr
	}
	if start >= 0 {
		s = s[start:]
		closer := byte('}')
		if s[0] == '[' {
			closer = ']'
		}
		if end := strings.LastIndexByte(s, closer); end >= 0 {
			s = s[:end+1]
		}
	}

	return s, s != original
}
