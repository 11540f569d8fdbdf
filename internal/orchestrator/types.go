package orchestrator

// #region imports
import (
	"errors"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/analysis"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/eval"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
)

// #endregion

// #region errors

var (
	// ErrProviderUnavailable fails a turn whose provider call could not be served.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrSessionBusy rejects a turn while another turn on the same session runs.
	ErrSessionBusy = errors.New("session busy")
	// ErrEmptyMessage rejects a learner turn with no text.
	ErrEmptyMessage = errors.New("empty message")
)

// #endregion

// #region profile

// Profile describes the learner to the generation prompt.
type Profile struct {
	Name     string `json:"name,omitempty" yaml:"name"`
	Subject  string `json:"subject,omitempty" yaml:"subject"`
	Level    string `json:"level,omitempty" yaml:"level"`
	Goal     string `json:"goal,omitempty" yaml:"goal"`
	Language string `json:"language,omitempty" yaml:"language"`
}

// #endregion

// #region route-decision

// RouteDecision is the router's tier choice for one turn.
type RouteDecision struct {
	Tier            provider.Tier  `json:"tier"`
	ReasoningBudget int            `json:"reasoning_budget"`
	Rationale       string         `json:"rationale"`
	Heuristic       bool           `json:"heuristic"` // decided without a provider call
	Degraded        bool           `json:"degraded"`  // router call failed, MID fallback used
	Calls           int            `json:"calls"`
	Usage           provider.Usage `json:"usage"`
}

// #endregion

// #region repair-log

// RepairLog records the decode and repair attempts of one generation.
type RepairLog struct {
	Purpose      string   `json:"purpose"`
	Attempts     int      `json:"attempts"`
	RawSizes     []int    `json:"raw_sizes"`
	DecodeErrors []string `json:"decode_errors,omitempty"`
	Repaired     bool     `json:"repaired"`
	Fallback     bool     `json:"fallback"`
	HealWarnings []string `json:"heal_warnings,omitempty"`
}

// #endregion

// #region supervisor-log

// Phase is a state of the per-turn supervision machine.
type Phase string

const (
	PhaseDrafted   Phase = "DRAFTED"
	PhaseRewriting Phase = "REWRITING"
	PhaseFinalized Phase = "FINALIZED"
)

// SupervisorLog records the gate check and any rewrite of one turn.
type SupervisorLog struct {
	Phases           []Phase      `json:"phases"`
	Breach           *gate.Breach `json:"breach,omitempty"`
	Rewritten        bool         `json:"rewritten"`
	RewriteDegraded  bool         `json:"rewrite_degraded"` // rewrite output unusable, draft kept
	PersistingBreach *gate.Breach `json:"persisting_breach,omitempty"`
	RewriteRepair    *RepairLog   `json:"rewrite_repair,omitempty"`
}

// #endregion

// #region telemetry

// Telemetry is the diagnostic record returned with every turn.
type Telemetry struct {
	Trigger    string                  `json:"trigger"`
	Router     RouteDecision           `json:"router"`
	Repair     RepairLog               `json:"repair"`
	Supervisor SupervisorLog           `json:"supervisor"`
	Validation eval.SemanticValidation `json:"validation"`
	Usage      provider.Usage          `json:"usage"`
	Calls      int                     `json:"calls"`
	LatencyMs  int64                   `json:"latency_ms"`
	Model      string                  `json:"model"`
	Degraded   bool                    `json:"degraded"`
	Warnings   []string                `json:"warnings,omitempty"`
	VersionID  string                  `json:"version_id"`
	Decision   string                  `json:"decision"`
}

// #endregion

// #region turn-result

// TurnResult is what the caller renders: filtered text, the finalized
// analysis and telemetry.
type TurnResult struct {
	SafeText  string
	Analysis  analysis.TurnAnalysis
	Telemetry Telemetry
}

// #endregion
