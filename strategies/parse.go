package strategies

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseDecisions reads decisions from model or service output. It accepts
//
//	{"AAPL": {"action": "buy", "quantity": 10}, ...}
//	{"decisions": {"AAPL": {...}}}
//
// optionally wrapped in a fenced code block or surrounded by prose. Anything
// else is ErrUnparseableDecision.
func ParseDecisions(raw []byte) (Decisions, error) {
	body := extractJSON(raw)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrUnparseableDecision)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableDecision, err)
	}
	if inner, ok := top["decisions"]; ok {
		top = nil
		if err := json.Unmarshal(inner, &top); err != nil {
			return nil, fmt.Errorf("%w: decisions: %v", ErrUnparseableDecision, err)
		}
	}

	out := make(Decisions, len(top))
	for ticker, v := range top {
		var d Decision
		if err := json.Unmarshal(v, &d); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnparseableDecision, ticker, err)
		}
		if d.Action == "" {
			return nil, fmt.Errorf("%w: %s: missing action", ErrUnparseableDecision, ticker)
		}
		out[strings.TrimSpace(ticker)] = d
	}
	return out, nil
}

// extractJSON returns the JSON object inside raw: the body of the first
// fenced code block if there is one, otherwise the span from the first '{'
// to the last '}'.
func extractJSON(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	fence := []byte("```")

	if i := bytes.Index(s, fence); i >= 0 {
		rest := s[i+len(fence):]
		// skip an info string such as "json"
		if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := bytes.Index(rest, fence); j >= 0 {
			s = bytes.TrimSpace(rest[:j])
		}
	}

	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil
	}
	return s[start : end+1]
}
