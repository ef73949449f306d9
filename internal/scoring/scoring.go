// Package scoring estimates keyword opportunity and traffic from research metrics.
package scoring

import "math"

const maxScore = 100

// OpportunityScore rates a keyword from 0 to 100. Missing or zero volume or
// difficulty scores 0. A missing competitor count earns no competition bonus.
func OpportunityScore(volume, difficulty, competitors *int) int {
	if volume == nil || difficulty == nil || *volume == 0 || *difficulty == 0 {
		return 0
	}

	d := *difficulty
	score := float64(*volume) / float64(max(d, 1)) * 10

	if competitors != nil {
		switch c := *competitors; {
		case c <= 3:
			score *= 1.5
		case c <= 5:
			score *= 1.2
		}
	}
	if d >= 30 && d <= 50 {
		score *= 1.3
	}
	if d > 70 {
		score *= 0.5
	}

	score = math.Min(score, maxScore)
	score = math.Max(score, 0)
	return int(math.Round(score))
}

// DifficultyLabel buckets a difficulty value for display.
func DifficultyLabel(difficulty *int) string {
	if difficulty == nil {
		return "Unknown"
	}
	switch d := *difficulty; {
	case d < 30:
		return "Easy"
	case d < 50:
		return "Medium"
	case d < 70:
		return "Hard"
	default:
		return "Very Hard"
	}
}

// CTR is the expected click-through rate for a ranking page at the given difficulty.
// Unknown difficulty gets the most conservative rate.
func CTR(difficulty *int) float64 {
	if difficulty == nil {
		return 0.005
	}
	switch d := *difficulty; {
	case d < 30:
		return 0.10
	case d < 50:
		return 0.05
	case d < 70:
		return 0.02
	default:
		return 0.005
	}
}

// EstimatedTraffic is the monthly visits expected from ranking for the keyword.
func EstimatedTraffic(volume, difficulty *int) int {
	if volume == nil || *volume == 0 {
		return 0
	}
	return int(math.Round(float64(*volume) * CTR(difficulty)))
}
