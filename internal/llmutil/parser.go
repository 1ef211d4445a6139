// Package llmutil deals with the formatting quirks of model output, chiefly
// JSON replies wrapped in markdown code fences.
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fencedObjectRegex extracts a JSON object from a markdown code fence.
// \x60 is a backtick; Go raw strings cannot contain them.
var fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ParseJSONReply unmarshals a model reply into T, tolerating the object
// being wrapped in a ```json fence or surrounded by conversational text.
func ParseJSONReply[T any](reply string) (*T, error) {
	payload := strings.TrimSpace(reply)

	if strings.HasPrefix(payload, "```") {
		if m := fencedObjectRegex.FindStringSubmatch(payload); len(m) > 1 {
			payload = m[1]
		}
	} else if !strings.HasPrefix(payload, "{") {
		// Fall back to the outermost brace pair inside surrounding prose.
		first := strings.Index(payload, "{")
		last := strings.LastIndex(payload, "}")
		if first != -1 && last > first {
			payload = payload[first : last+1]
		}
	}

	var result T
	if err := json.UnmarshalFromString(payload, &result); err != nil {
		return nil, fmt.Errorf("malformed JSON reply: %w (extracted: %s)", err, truncate(payload, 300))
	}
	return &result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
