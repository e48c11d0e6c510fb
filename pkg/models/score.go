package models

// Score bounds. Scores outside them are rejected, never clamped.
const (
	MinScore = 0
	MaxScore = 100
)

// PassingScore is the lowest score counted as a pass.
const PassingScore = 50

// Grade maps a 0-100 score to a letter grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// ValidScore reports whether score lies within MinScore and MaxScore.
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// IsPassing reports whether score meets PassingScore.
func IsPassing(score int) bool {
	return score >= PassingScore
}
