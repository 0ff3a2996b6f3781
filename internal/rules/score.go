package rules

import "math"

// Score computes the deterministic 0-100 engagement score for one
// enrollment. Three independently-capped components are summed and
// clamped; nothing else influences the score, so it is reproducible
// from stored metrics alone.
func Score(daysInactive, logins30d int, completionPct float64) int {
	score := recencyPoints(daysInactive) + progressPoints(completionPct) + consistencyPoints(logins30d)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// recencyPoints awards up to 40 points for recent activity.
func recencyPoints(daysInactive int) int {
	switch {
	case daysInactive <= 0:
		return 40
	case daysInactive <= 3:
		return 30
	case daysInactive <= 7:
		return 20
	case daysInactive <= 14:
		return 10
	default:
		return 0
	}
}

// progressPoints awards up to 30 points proportional to completion.
func progressPoints(completionPct float64) int {
	if completionPct < 0 {
		completionPct = 0
	}
	if completionPct > 100 {
		completionPct = 100
	}
	return int(math.Round(completionPct / 100 * 30))
}

// consistencyPoints awards up to 30 points for login frequency.
func consistencyPoints(logins30d int) int {
	switch {
	case logins30d >= 20:
		return 30
	case logins30d >= 10:
		return 20
	case logins30d >= 5:
		return 10
	default:
		return 0
	}
}

// LevelFor maps a score to one of the six ordered engagement bands.
func LevelFor(score int) string {
	switch {
	case score < 15:
		return "Critical"
	case score < 30:
		return "Low"
	case score < 50:
		return "Medium-Low"
	case score < 70:
		return "Medium"
	case score < 85:
		return "High"
	default:
		return "Exceptional"
	}
}
