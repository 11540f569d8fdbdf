package eval

// #region status
// Status buckets the reliability score.
type Status string

const (
	StatusOptimal  Status = "OPTIMAL"
	StatusDrift    Status = "DRIFT"
	StatusCritical Status = "CRITICAL"
)

// #endregion status

// #region weights
// Weights holds the penalty applied for each inconsistency class.
type Weights struct {
	CriticalBreach      float64 // CRITICAL gate breach
	Breach              float64 // any other gate breach
	RecallWithCritique  float64 // K1 asserted alongside E4/E5
	UnsupportedFact     float64 // "fact" without sourced epistemic band
	InstructionAutonomy float64 // P2 instruction with TD1/TD2 autonomy
}

// DefaultWeights returns the production penalty table.
func DefaultWeights() Weights {
	return Weights{
		CriticalBreach:      1.0,
		Breach:              0.4,
		RecallWithCritique:  0.2,
		UnsupportedFact:     0.3,
		InstructionAutonomy: 0.2,
	}
}

// #endregion weights

// #region validation
// SemanticValidation is the reliability verdict for one finalized turn.
type SemanticValidation struct {
	GFactor   float64  `json:"g_factor"`
	Penalties []string `json:"penalties"`
	Status    Status   `json:"status"`
}

// #endregion validation
