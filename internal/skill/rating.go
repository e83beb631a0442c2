package skill

import (
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/shopspring/decimal"
)

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)

// RatingSummary is the derived rating of a skill. Average is nil when the
// skill has no feedback.
type RatingSummary struct {
	Average *decimal.Decimal
	Total   int
}

// AverageRating returns the mean rating rounded to one decimal place.
// ok is false when there are no feedbacks.
func AverageRating(feedbacks []models.Feedback) (avg decimal.Decimal, ok bool) {
	if len(feedbacks) == 0 {
		return decimal.Zero, false
	}
	var sum int64
	for _, f := range feedbacks {
		sum += int64(f.Rating)
	}
	return decimal.NewFromInt(sum).
		Div(decimal.NewFromInt(int64(len(feedbacks)))).
		Round(1), true
}

// Summarize computes the rating summary of a skill
func Summarize(sk *models.Skill) RatingSummary {
	summary := RatingSummary{Total: len(sk.Feedbacks)}
	if avg, ok := AverageRating(sk.Feedbacks); ok {
		summary.Average = &avg
	}
	return summary
}

// FormatAverage renders the average with exactly one decimal ("4.0"),
// or nil when there is none.
func (r RatingSummary) FormatAverage() *string {
	if r.Average == nil {
		return nil
	}
	s := r.Average.StringFixed(1)
	return &s
}
