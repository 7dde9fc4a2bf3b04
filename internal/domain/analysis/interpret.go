package analysis

import (
	"fmt"
	"strings"
)

const (
	highThreshold   = 0.8
	mediumThreshold = 0.5
)

// RiskFor maps a model confidence to a risk level: above 0.8 is high,
// above 0.5 is medium, anything else low.
func RiskFor(confidence float64) RiskLevel {
	switch {
	case confidence > highThreshold:
		return RiskHigh
	case confidence > mediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Interpretation is the human readable reading of a confidence score.
type Interpretation struct {
	AnalysisType   string
	Result         string
	RiskLevel      RiskLevel
	Recommendation string
}

type domainWording struct {
	positive   string
	negative   string
	specialist string
}

var wording = map[ImageDomain]domainWording{
	DomainLung: {
		positive:   "Potential lung malignancy",
		negative:   "No signs of lung cancer",
		specialist: "pulmonologist",
	},
	DomainBrain: {
		positive:   "Potential brain tumor",
		negative:   "No signs of brain tumor",
		specialist: "neurologist",
	},
}

// Interpret builds the result text, risk level and recommendation for a
// confidence produced by the model of domain d.
func Interpret(d ImageDomain, confidence float64) Interpretation {
	w := wording[d]
	risk := RiskFor(confidence)

	result := w.negative
	if risk == RiskHigh {
		result = w.positive
	}

	return Interpretation{
		AnalysisType:   AnalysisType(d),
		Result:         result,
		RiskLevel:      risk,
		Recommendation: recommendation(risk, w.specialist),
	}
}

// AnalysisType is the label stored with a result, e.g. "Lung Cancer Detection".
func AnalysisType(d ImageDomain) string {
	s := string(d)
	if s == "" {
		return "Cancer Detection"
	}
	return strings.ToUpper(s[:1]) + s[1:] + " Cancer Detection"
}

func recommendation(risk RiskLevel, specialist string) string {
	switch risk {
	case RiskHigh:
		return fmt.Sprintf("Urgent referral to a specialist (%s) for further evaluation and biopsy consideration.", specialist)
	case RiskMedium:
		return "Schedule follow-up imaging in 3 months to monitor for changes."
	default:
		return "Continue routine screening according to standard guidelines."
	}
}
