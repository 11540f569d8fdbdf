package orchestrator

// #region imports
import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/gate"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/provider"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/rubric"
	"github.com/danielpatrickdp/didactic-engine/go-controller/internal/state"
)

// #endregion

// #region constants

// FallbackReply is shown when the model output could not be decoded at all.
const FallbackReply = "Sorry, I lost my train of thought there. Could you tell me in your own words where you are right now?"

const maxNudgeContext = 3

// #endregion

// #region system-prompt

// SystemPrompt builds the generation prompt from the rubric, the learner
// profile and the current learner state.
func SystemPrompt(cat *rubric.Catalog, profile Profile, st state.LearnerState) string {
	var b strings.Builder
	b.WriteString("You are a Socratic tutor. Guide the learner to think for themselves; never hand over finished answers when the learner can take the step.\n")
	b.WriteString("Reply with a single JSON object matching the provided schema. Put only learner-facing prose in conversational_response and never mention band ids or commands there.\n")

	if p := profileLine(profile); p != "" {
		b.WriteString("\nLEARNER: " + p + "\n")
	}

	b.WriteString("\nRUBRIC (classify this turn with one band per relevant dimension):\n")
	for _, d := range cat.Dimensions() {
		fmt.Fprintf(&b, "- %s %s:", d.ID, d.Name)
		for _, band := range d.Bands {
			fmt.Fprintf(&b, " %s=%s;", band.ID, band.Label)
		}
		b.WriteString("\n")
	}

	if cmds := cat.Commands(); len(cmds) > 0 {
		b.WriteString("\nCOMMANDS (set active_fix to at most one):\n")
		for _, c := range cmds {
			fmt.Fprintf(&b, "- %s: %s\n", c.Token, c.Description)
		}
	}

	if gates := cat.LogicGates(); len(gates) > 0 {
		b.WriteString("\nHARD RULES:\n")
		for _, g := range gates {
			fmt.Fprintf(&b, "- when %s applies: %s (%s)\n", g.TriggerBand, g.Enforcement, g.Priority)
		}
	}

	if len(st.CurrentBands) > 0 {
		dims := make([]string, 0, len(st.CurrentBands))
		for d := range st.CurrentBands {
			dims = append(dims, d)
		}
		sort.Strings(dims)
		parts := make([]string, 0, len(dims))
		for _, d := range dims {
			parts = append(parts, d+"="+st.CurrentBands[d])
		}
		fmt.Fprintf(&b, "\nCURRENT STATE (turn %d): %s\n", st.Turn, strings.Join(parts, ", "))
	}
	if st.Scaffolding.Advice != "" {
		b.WriteString("\nSCAFFOLDING: " + st.Scaffolding.Advice + "\n")
	}
	return b.String()
}

func profileLine(p Profile) string {
	var parts []string
	for _, kv := range [][2]string{
		{"name", p.Name}, {"subject", p.Subject}, {"level", p.Level}, {"goal", p.Goal}, {"language", p.Language},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+": "+kv[1])
		}
	}
	return strings.Join(parts, "; ")
}

// #endregion

// #region auxiliary-prompts

// RouterPrompt instructs the tier classification call.
func RouterPrompt() string {
	return "Classify how much reasoning the tutor needs for the learner message. " +
		"FAST: greetings, acknowledgements, short factual follow-ups. " +
		"MID: ordinary explanation or feedback. " +
		"SLOW: multi-step reasoning, misconceptions, or evaluation of a full argument. " +
		"Reply as JSON {\"tier\": \"FAST|MID|SLOW\", \"rationale\": \"...\"}."
}

// RepairPrompt instructs the JSON repair call.
func RepairPrompt() string {
	return "You repair malformed JSON. Return only the corrected JSON object matching the schema; keep the original content and wording."
}

func repairMessage(raw string) string {
	return "Fix this JSON:\n" + raw
}

// RewriteInstruction is the corrective user turn after a gate breach.
func RewriteInstruction(b *gate.Breach) string {
	detected := b.DetectedValue
	if detected == "" {
		detected = "none"
	}
	return fmt.Sprintf(
		"Your previous reply breaks a hard rule: when %s applies, %s (priority %s). "+
			"You used %s but the limit is %s. Rewrite the reply so the learner does more of the work: "+
			"ask a guiding question instead of giving the answer, and classify the rewritten reply again.",
		b.TriggerBand, b.RuleText, b.Priority, detected, b.Limit)
}

// #endregion

// #region nudges

// NudgeInstruction is the hidden user turn for an idle nudge of level 1..3.
// recent supplies context for the content hint.
func NudgeInstruction(level int, recent []provider.Message) string {
	switch level {
	case 1:
		return "(The learner has been quiet for a while.) Check in on their process with one short, friendly question about where they are stuck. Do not give content."
	case 2:
		ctx := recentContext(recent)
		return "(The learner is still quiet.) Give one small content hint that builds on the recent exchange, then ask them to try the next step." + ctx
	default:
		return "(The learner has not responded to two check-ins.) Offer a forced choice between two concrete next steps and ask them to pick A or B."
	}
}

func recentContext(recent []provider.Message) string {
	if len(recent) == 0 {
		return ""
	}
	if len(recent) > maxNudgeContext {
		recent = recent[len(recent)-maxNudgeContext:]
	}
	var b strings.Builder
	b.WriteString("\nRecent exchange:")
	for _, m := range recent {
		fmt.Fprintf(&b, "\n%s: %s", m.Role, m.Content)
	}
	return b.String()
}

// #endregion
