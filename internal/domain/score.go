package domain

// ScoreScale is the upper bound of the risk score range.
const ScoreScale = 1000

// RiskScore is the deterministic combination of a session's evidence under a
// policy. Recomputation (e.g. on appeal) creates a new RiskScore; an existing
// one is never mutated.
type RiskScore struct {
	// Value in [0, ScoreScale]. Higher means stronger identity evidence.
	Value int `json:"value"`
	// Factors maps factor name to its weighted contribution on the unit scale.
	Factors map[string]float64 `json:"factors"`
	// Confidence in [0,1] reflects how much signal backed the score.
	Confidence float64 `json:"confidence"`
}
