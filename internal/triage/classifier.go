package triage

import "fmt"

// Classification splits recommendations by confidence.
type Classification struct {
	AutoApply    []Recommendation `json:"auto_apply"`
	ManualReview []Recommendation `json:"manual_review"`
}

// Classify puts every recommendation with confidence >= threshold into
// AutoApply and the rest into ManualReview, keeping input order.
func Classify(recs []Recommendation, threshold int) Classification {
	c := Classification{
		AutoApply:    make([]Recommendation, 0, len(recs)),
		ManualReview: make([]Recommendation, 0, len(recs)),
	}
	for _, r := range recs {
		if r.Confidence >= threshold {
			c.AutoApply = append(c.AutoApply, r)
		} else {
			c.ManualReview = append(c.ManualReview, r)
		}
	}
	return c
}

func ValidateThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return fmt.Errorf("confidence threshold %d out of range 0-100", threshold)
	}
	return nil
}
