package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"studyhall-backend/internal/scope"
)

var labelRe = regexp.MustCompile(`(?i)^(\d+)\s*(?:F|층)?\s*[-_/ ]?\s*([A-Za-z]*)$`)

// ScopeLabel extracts floor and zone from a human scope label such as "2F-A",
// "2A", "2-a", "3F", "3" or "5층 B".
func ScopeLabel(raw string) (scope.Scope, error) {
	s := strings.TrimSpace(raw)
	s = regexp.MustCompile(`\s+`).ReplaceAllString(s, " ")

	m := labelRe.FindStringSubmatch(s)
	if m == nil {
		return scope.Scope{}, fmt.Errorf("unable to parse scope label: %q", raw)
	}

	floor, err := strconv.Atoi(m[1])
	if err != nil || floor <= 0 {
		return scope.Scope{}, fmt.Errorf("unable to parse floor from label: %q", raw)
	}

	zone, err := scope.ParseZone(m[2])
	if err != nil {
		return scope.Scope{}, fmt.Errorf("label %q: %w", raw, err)
	}
	return scope.New(floor, zone), nil
}

// TopicScope parses the last segment of an MQTT topic such as
// "studyhall/sensors/2F-A" as a scope label.
func TopicScope(topic string) (scope.Scope, error) {
	topic = strings.TrimRight(topic, "/")
	idx := strings.LastIndex(topic, "/")
	return ScopeLabel(topic[idx+1:])
}
