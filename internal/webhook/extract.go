package webhook

import (
	"encoding/json"
	"strings"
)

// replyProbeFields is the probe order used when no response path is
// configured.
var replyProbeFields = []string{"reply", "message", "response", "text"}

// extractReply pulls a reply string out of a webhook response body.
//
// With a dot-path every segment must name an existing property of the
// current object; any miss means no reply. Without a path the common field
// names are probed in order and the first string-typed value wins.
// Non-string values count as absent. A missing reply is a normal outcome,
// not an error.
func extractReply(body []byte, path string) (string, bool) {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return "", false
	}

	if path != "" {
		return followPath(obj, path)
	}

	for _, field := range replyProbeFields {
		if s, ok := obj[field].(string); ok {
			return s, true
		}
	}
	return "", false
}

func followPath(obj map[string]any, path string) (string, bool) {
	var current any = obj
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		if current, ok = m[segment]; !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	return s, ok
}
