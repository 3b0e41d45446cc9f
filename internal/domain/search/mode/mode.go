package mode

// Mode is the caller's retrieval preference.
type Mode string

// Search mode constants.
const (
	// Auto lets the planner pick from input shape and capabilities.
	Auto    Mode = "auto"
	Lexical Mode = "lexical"
	// Vector demands semantic ranking and fails rather than degrade.
	Vector Mode = "vector"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Auto || m == Lexical || m == Vector
}

// Parse maps an empty string to Auto.
func Parse(s string) (Mode, bool) {
	if s == "" {
		return Auto, true
	}
	m := Mode(s)
	return m, m.IsValid()
}
