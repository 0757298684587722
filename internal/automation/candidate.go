package automation

// Candidate is a read-only view of one vacancy item from a
// similar_vacancies results page. Never persisted.
type Candidate struct {
	ID                     string
	Name                   string
	AlternateURL           string
	HasTest                bool
	Archived               bool
	ResponseLetterRequired bool
	Relations              []any
	EmployerID             string
}

// candidateFromItem extracts the fields the apply engine filters on.
// Anything missing or of an unexpected type reads as the zero value.
func candidateFromItem(item map[string]any) Candidate {
	c := Candidate{
		ID:                     stringField(item, "id"),
		Name:                   stringField(item, "name"),
		AlternateURL:           stringField(item, "alternate_url"),
		HasTest:                boolField(item, "has_test"),
		Archived:               boolField(item, "archived"),
		ResponseLetterRequired: boolField(item, "response_letter_required"),
	}
	if rel, ok := item["relations"].([]any); ok {
		c.Relations = rel
	}
	if employer, ok := item["employer"].(map[string]any); ok {
		c.EmployerID = stringField(employer, "id")
	}
	return c
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// intField reads a JSON number as int; encoding/json decodes numbers
// as float64 in a value tree.
func intField(m map[string]any, key string) int {
	n, _ := m[key].(float64)
	return int(n)
}
