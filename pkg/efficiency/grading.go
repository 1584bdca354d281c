package efficiency

import (
	"fmt"
	"strings"
)

// Grade is a letter summarizing an improvement percentage.
type Grade string

// Performance grades, best first.
const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// GradeBand is an inclusive lower bound on improvement percent for a grade.
type GradeBand struct {
	Grade      Grade
	MinPercent float64
}

// gradeBands is ordered from the highest threshold down; first match wins.
// Anything below the last band is GradeD.
var gradeBands = []GradeBand{
	{Grade: GradeAPlus, MinPercent: 20},
	{Grade: GradeA, MinPercent: 15},
	{Grade: GradeBPlus, MinPercent: 10},
	{Grade: GradeB, MinPercent: 5},
	{Grade: GradeC, MinPercent: 0},
}

// GradeBands returns the grading thresholds, highest first.
func GradeBands() []GradeBand {
	return append([]GradeBand(nil), gradeBands...)
}

// PerformanceGrade maps an improvement percentage to a letter grade.
// It is used both for individual periods and for the building summary.
// Negative percentages and NaN grade as D.
func PerformanceGrade(improvementPct float64) Grade {
	for _, band := range gradeBands {
		if improvementPct >= band.MinPercent {
			return band.Grade
		}
	}
	return GradeD
}

// Label returns the short description shown next to the grade.
func (g Grade) Label() string {
	switch g {
	case GradeAPlus:
		return "Excellent"
	case GradeA:
		return "Very Good"
	case GradeBPlus:
		return "Good"
	case GradeB:
		return "Satisfactory"
	case GradeC:
		return "Needs Improvement"
	case GradeD:
		return "Poor"
	default:
		return ""
	}
}

// Display returns the grade with its label, e.g. "A (Very Good)".
func (g Grade) Display() string {
	label := g.Label()
	if label == "" {
		return string(g)
	}
	return fmt.Sprintf("%s (%s)", g, label)
}

// MarshalText encodes the display form, which is what dashboards render.
func (g Grade) MarshalText() ([]byte, error) {
	if g.Label() == "" {
		return nil, fmt.Errorf("invalid grade %q", string(g))
	}
	return []byte(g.Display()), nil
}

// UnmarshalText accepts either the bare letter ("B+") or the display form ("B+ (Good)").
func (g *Grade) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	parsed := Grade(s)
	if parsed.Label() == "" {
		return fmt.Errorf("invalid grade %q", string(text))
	}
	*g = parsed
	return nil
}
