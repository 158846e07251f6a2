package retina

import "fmt"

// Label is the classifier's binary decision.
type Label int

const (
	NoDR Label = iota
	DRDetected
)

// Threshold is the fixed decision boundary on P(DR); equality means NoDR.
const Threshold = 0.5

func (l Label) String() string {
	switch l {
	case NoDR:
		return "No DR"
	case DRDetected:
		return "DR Detected"
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Recommendations returns a fresh copy of the advice shown for l.
func (l Label) Recommendations() []string {
	switch l {
	case DRDetected:
		return []string{
			"Diabetic retinopathy detected",
			"Immediate ophthalmologist consultation required",
			"Monitor blood glucose levels closely",
			"Consider treatment options as advised by specialist",
		}
	default:
		return []string{
			"No diabetic retinopathy detected",
			"Continue regular eye examinations",
			"Maintain good blood sugar control",
			"Follow healthy lifestyle habits",
		}
	}
}

// Decision is the thresholded reading of a DR probability.
type Decision struct {
	Label       Label
	Probability float64 // P(DR)
	Confidence  float64 // probability of Label
}

func Decide(p float64) Decision {
	if p > Threshold {
		return Decision{Label: DRDetected, Probability: p, Confidence: p}
	}
	return Decision{Label: NoDR, Probability: p, Confidence: 1 - p}
}

// FormatPercent renders a probability as a percentage with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}
