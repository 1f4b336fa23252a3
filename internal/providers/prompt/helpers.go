package prompt

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	staticProviderName = "static"
	openAIProviderName = "openai"
)

var errNoJSONObject = errors.New("no JSON object in model reply")

type modelPairPayload struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// decodePair reads the first decodable JSON object in a chat reply, which
// may be wrapped in markdown fences or prose.
func decodePair(reply string) (modelPairPayload, error) {
	var out modelPairPayload
	for rest := reply; ; {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			return out, errNoJSONObject
		}
		out = modelPairPayload{}
		dec := json.NewDecoder(strings.NewReader(rest[i:]))
		if err := dec.Decode(&out); err == nil {
			return out, nil
		}
		rest = rest[i+1:]
	}
}
