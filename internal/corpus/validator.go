package corpus

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const maxIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateDocument checks that a document can appear in a run file: its id
// must be present, short, and free of whitespace.
func ValidateDocument(doc Document) error {
	errs := make(map[string]string)
	if msg := checkID(doc.ID); msg != "" {
		errs["docno"] = msg
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateQuery applies the same id rules to a topic number.
func ValidateQuery(q Query) error {
	errs := make(map[string]string)
	if msg := checkID(q.OriginalID); msg != "" {
		errs["num"] = msg
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkID(id string) string {
	switch {
	case id == "":
		return "id is required"
	case len(id) > maxIDLength:
		return fmt.Sprintf("id must be at most %d characters", maxIDLength)
	case strings.IndexFunc(id, unicode.IsSpace) >= 0:
		return "id must not contain whitespace"
	}
	return ""
}
