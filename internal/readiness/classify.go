package readiness

// Summary counts findings per severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
	Hints    int `json:"hints"`
}

// Total returns the number of findings counted.
func (s Summary) Total() int {
	return s.Errors + s.Warnings + s.Infos + s.Hints
}

// Level applies the two-threshold rule: any error is Low, otherwise any
// warning is Medium, otherwise High.
func (s Summary) Level() Level {
	switch {
	case s.Errors > 0:
		return LevelLow
	case s.Warnings > 0:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Summarize counts findings by severity. It fails on the first finding with
// an unrecognized severity.
func Summarize(findings []Finding) (Summary, error) {
	var s Summary
	for i, f := range findings {
		switch f.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Infos++
		case SeverityHint:
			s.Hints++
		default:
			return Summary{}, &InvalidSeverityError{Index: i, Severity: f.Severity}
		}
	}
	return s, nil
}

// Classify maps findings to a readiness level. The result depends only on
// the error and warning counts, never on ordering. An empty sequence is High.
func Classify(findings []Finding) (Level, error) {
	s, err := Summarize(findings)
	if err != nil {
		return 0, err
	}
	return s.Level(), nil
}
