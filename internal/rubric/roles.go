package rubric

// Dimension ids the pipeline reasons about directly.
const (
	DimKnowledge    = "K"
	DimProcess      = "P"
	DimCoRegulation = "C"
	DimTaskDensity  = "TD"
	DimEpistemic    = "E"
)

// Band ids with fixed pedagogical meaning. The scorer, the idle TTL and the
// agency lookup are keyed on these rather than on label text.
const (
	BandFactualRecall = "K1"
	BandMetacognition = "K3"

	BandInstruction = "P2"

	BandEpistemicUnverified = "E1"
	BandEpistemicSourced    = "E2"
	BandEpistemicCritical   = "E4"
	BandEpistemicSynthesis  = "E5"

	BandLearnerAutonomous = "TD1"
	BandLearnerLeading    = "TD2"
	BandBalanced          = "TD3"
	BandAILeading         = "TD4"
	BandAIDominant        = "TD5"
)

// defaultAliases heals near-miss command tokens the model tends to produce.
// Rubric sources may extend or override these under command_library.aliases.
var defaultAliases = map[string]string{
	"/proces_evaluatie": "/proces_eval",
	"/procesevaluatie":  "/proces_eval",
	"/process_eval":     "/proces_eval",
	"/check":            "/checkvraag",
	"/check_vraag":      "/checkvraag",
	"/metacognitie":     "/meta",
	"/bronnen":          "/bron",
	"/bronvermelding":   "/bron",
	"/reflect":          "/reflectie",
	"/falsificeer":      "/falsificatie",
	"/fade":             "/fading",
	"/samenvat":         "/samenvatting",
}
