package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a parsed structured response from the metadata service:
// a header block plus a response block. Consumers read sections through
// the helper methods instead of re-parsing raw bytes.
type Document struct {
	Header   map[string]any `json:"header"`
	Response map[string]any `json:"response"`
}

// quotaPhrases are the explicit quota-exhaustion indicators the upstream
// embeds in response text, in both of its languages.
var quotaPhrases = []string{
	"quota exceeded",
	"quota dépassé",
	"limite dépassée",
	"limit exceeded",
	"trop de requêtes",
	"too many requests",
	"rate limit exceeded",
	"quota atteint",
	"limite atteinte",
}

// errorIndicators suggest an error response even when the HTTP status was
// success. Checked only when the document lacks explicit success markers.
var errorIndicators = []string{"api closed", "erreur", "error"}

// ParseDocument decodes a structured response body and applies the content
// validation pass: explicit-success documents pass through, explicit-error
// documents map to a taxonomy kind, and ambiguous or undecodable documents
// fail as Malformed.
func ParseDocument(body []byte) (*Document, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil, newError(KindMalformed, 0, "empty response body")
	}

	// The upstream sometimes reports errors as plain text with a 200
	// status. Sniff those before attempting a JSON decode, unless the body
	// carries explicit success markers.
	lower := strings.ToLower(text)
	explicitSuccess := strings.Contains(text, `"success": "true"`) ||
		strings.Contains(text, `"success":"true"`) ||
		strings.Contains(text, `"success":true`)
	if !explicitSuccess && containsAny(lower, errorIndicators) {
		if kind, ok := textErrorKind(lower); ok {
			return nil, newError(kind, 0, snippet(text))
		}
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, wrapError(KindMalformed, "undecodable response body", err)
	}

	// Explicit success short-circuits all further error sniffing.
	if doc.Succeeded() {
		return &doc, nil
	}

	// Top-level structured error field.
	var topLevel map[string]json.RawMessage
	if err := json.Unmarshal(body, &topLevel); err == nil {
		if raw, ok := topLevel["erreur"]; ok {
			msg := strings.ToLower(string(raw))
			if containsAny(msg, quotaPhrases) {
				return nil, newError(KindQuotaExceeded, 0, snippet(string(raw)))
			}
			return nil, newError(KindMalformed, 0,
				fmt.Sprintf("service returned error: %s", snippet(string(raw))))
		}
	}

	// Non-empty response.error field.
	if errMsg, ok := doc.Response["error"].(string); ok && errMsg != "" {
		msgLower := strings.ToLower(errMsg)
		if containsAny(msgLower, quotaPhrases) {
			return nil, newError(KindQuotaExceeded, 0, snippet(errMsg))
		}
		return nil, newError(KindMalformed, 0,
			fmt.Sprintf("service returned error: %s", snippet(errMsg)))
	}

	return &doc, nil
}

// textErrorKind maps an error-looking plain-text body to a taxonomy kind.
func textErrorKind(lower string) (ErrorKind, bool) {
	if containsAny(lower, quotaPhrases) {
		return KindQuotaExceeded, true
	}
	if strings.Contains(lower, "forbidden") {
		return KindAccessForbidden, true
	}
	// Error-looking but not JSON-decodable text still has to go through
	// the JSON decode; only report here when it clearly is not JSON.
	if !strings.HasPrefix(lower, "{") && !strings.HasPrefix(lower, "[") {
		return KindMalformed, true
	}
	return "", false
}

// Succeeded reports whether the document carries the upstream's explicit
// success markers.
func (d *Document) Succeeded() bool {
	success := d.Response["success"]
	ok := success == "true" || success == true
	errVal, hasErr := d.Response["error"]
	return ok && (!hasErr || errVal == "")
}

// Section returns a named object inside the response block, or nil.
func (d *Document) Section(name string) map[string]any {
	section, _ := d.Response[name].(map[string]any)
	return section
}

// List returns a named array inside the response block, or nil.
func (d *Document) List(name string) []any {
	list, _ := d.Response[name].([]any)
	return list
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func snippet(s string) string {
	if len(s) > maxErrorBodySnippet {
		return s[:maxErrorBodySnippet]
	}
	return s
}
