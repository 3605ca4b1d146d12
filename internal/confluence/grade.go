package confluence

// Grade converts a score into a letter used in notifications.
func Grade(score float64) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 75:
		return "B"
	case score >= 65:
		return "C"
	case score >= 55:
		return "D"
	default:
		return "F"
	}
}
