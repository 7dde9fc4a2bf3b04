package analysis

import "time"

// AnalysisID identifier type
type AnalysisID string

// ImageDomain is the anatomical category of a scan.
type ImageDomain string

const (
	DomainLung  ImageDomain = "lung"
	DomainBrain ImageDomain = "brain"
)

// Domains lists every domain a classifier exists for.
var Domains = []ImageDomain{DomainLung, DomainBrain}

// Valid reports whether d is a known domain.
func (d ImageDomain) Valid() bool {
	return d == DomainLung || d == DomainBrain
}

// RiskLevel enum
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Result is one persisted AI analysis of a patient scan. Immutable once saved.
type Result struct {
	ID             AnalysisID  `json:"id"`
	PatientID      int64       `json:"patient_id"`
	AnalysisType   string      `json:"analysis_type"`
	Result         string      `json:"result"`
	Confidence     float64     `json:"confidence_score"`
	RiskLevel      RiskLevel   `json:"risk_level"`
	Recommendation string      `json:"recommendations"`
	ImageFilename  string      `json:"image_filename"`
	ImageDomain    ImageDomain `json:"image_type"`
	ImageURL       string      `json:"image_url,omitempty"`
	AnalyzedAt     time.Time   `json:"analyzed_at"`
	AnalyzedBy     int64       `json:"analyzed_by"`
}
