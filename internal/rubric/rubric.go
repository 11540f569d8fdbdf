package rubric

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_ssot.yaml
var defaultSource []byte

// #region catalog
// Catalog is the read-only, queryable model of the rubric. It is built once
// and shared across sessions.
type Catalog struct {
	version    string
	dimensions []Dimension
	dimIndex   map[string]int
	bands      map[string]Band
	bandDim    map[string]string
	commands   []Command
	cmdIndex   map[string]Command
	aliases    map[string]string
	gates      []LogicGate
	cycle      []string
}

// #endregion catalog

// #region load
// Load reads a rubric source document (YAML or JSON) from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric %s: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded rubric. It panics if the embedded source is
// malformed, which would be a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultSource)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded rubric: %v", defaultErr))
	}
	return defaultCatalog
}

// Parse builds a Catalog from a rubric source document and validates it.
// Malformed documents fail fast with an error wrapping ErrInvalidRubric.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidRubric, err)
	}
	if len(doc.Rubrics) == 0 {
		return nil, fmt.Errorf("%w: no rubrics defined", ErrInvalidRubric)
	}

	c := &Catalog{
		version:  doc.Version,
		dimIndex: make(map[string]int),
		bands:    make(map[string]Band),
		bandDim:  make(map[string]string),
		cmdIndex: make(map[string]Command),
		aliases:  make(map[string]string),
		cycle:    append([]string(nil), doc.Metadata.Cycle.Order...),
	}

	for _, rd := range doc.Rubrics {
		dim, err := buildDimension(rd)
		if err != nil {
			return nil, err
		}
		if _, dup := c.dimIndex[dim.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate dimension %q", ErrInvalidRubric, dim.ID)
		}
		for _, b := range dim.Bands {
			if _, dup := c.bands[b.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate band id %q", ErrInvalidRubric, b.ID)
			}
			c.bands[b.ID] = b
			c.bandDim[b.ID] = dim.ID
		}
		c.dimIndex[dim.ID] = len(c.dimensions)
		c.dimensions = append(c.dimensions, dim)
	}

	tokens := make([]string, 0, len(doc.CommandLibrary.Commands))
	for tok := range doc.CommandLibrary.Commands {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	for _, raw := range tokens {
		tok := normalizeToken(raw)
		if tok == "/" {
			return nil, fmt.Errorf("%w: empty command token", ErrInvalidRubric)
		}
		if _, dup := c.cmdIndex[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate command token %q", ErrInvalidRubric, tok)
		}
		if _, clash := c.bands[strings.ToUpper(strings.TrimPrefix(tok, "/"))]; clash {
			return nil, fmt.Errorf("%w: command token %q collides with a band id", ErrInvalidRubric, tok)
		}
		cmd := Command{Token: tok, Description: doc.CommandLibrary.Commands[raw]}
		c.cmdIndex[tok] = cmd
		c.commands = append(c.commands, cmd)
	}

	for from, to := range defaultAliases {
		if _, ok := c.cmdIndex[to]; ok {
			c.aliases[from] = to
		}
	}
	for from, to := range doc.CommandLibrary.Aliases {
		target := normalizeToken(to)
		if _, ok := c.cmdIndex[target]; !ok {
			return nil, fmt.Errorf("%w: alias %q points at unknown command %q", ErrInvalidRubric, from, to)
		}
		c.aliases[normalizeToken(from)] = target
	}

	for i, gd := range doc.InteractionProtocol.LogicGates {
		g, err := c.buildGate(gd)
		if err != nil {
			return nil, fmt.Errorf("logic gate %d: %w", i, err)
		}
		c.gates = append(c.gates, g)
	}

	for _, id := range c.cycle {
		if _, ok := c.dimIndex[id]; !ok {
			if _, ok := c.bands[id]; !ok {
				return nil, fmt.Errorf("%w: cycle order references unknown id %q", ErrInvalidRubric, id)
			}
		}
	}

	return c, nil
}

func buildDimension(rd rubricDoc) (Dimension, error) {
	if len(rd.Bands) == 0 {
		return Dimension{}, fmt.Errorf("%w: rubric %q has no bands", ErrInvalidRubric, rd.Name)
	}
	id := strings.ToUpper(strings.TrimSpace(rd.RubricID))
	if id == "" {
		prefix, _, ok := SplitBandID(rd.Bands[0].BandID)
		if !ok {
			return Dimension{}, fmt.Errorf("%w: cannot derive dimension from band %q", ErrInvalidRubric, rd.Bands[0].BandID)
		}
		id = prefix
	}

	dim := Dimension{ID: id, Name: rd.Name}
	for _, bd := range rd.Bands {
		bandID := strings.ToUpper(strings.TrimSpace(bd.BandID))
		prefix, _, ok := SplitBandID(bandID)
		if !ok || prefix != id {
			return Dimension{}, fmt.Errorf("%w: band %q does not belong to dimension %q", ErrInvalidRubric, bd.BandID, id)
		}
		dim.Bands = append(dim.Bands, Band{
			ID:          bandID,
			Label:       bd.Label,
			Description: bd.Description,
			Fix:         bd.Fix,
			FixRef:      bd.FixRef,
			Flag:        bd.Flag,
			Mechanistic: bd.Mechanistic,
		})
	}
	return dim, nil
}

func (c *Catalog) buildGate(gd gateDoc) (LogicGate, error) {
	trigger := strings.ToUpper(strings.TrimSpace(gd.TriggerBand))
	if _, ok := c.bands[trigger]; !ok {
		return LogicGate{}, fmt.Errorf("%w: unknown trigger band %q", ErrInvalidRubric, gd.TriggerBand)
	}
	rule, err := ParseRule(gd.Enforcement)
	if err != nil {
		return LogicGate{}, err
	}
	if _, ok := c.dimIndex[rule.Dimension]; !ok {
		return LogicGate{}, fmt.Errorf("%w: rule %q targets unknown dimension", ErrInvalidRubric, gd.Enforcement)
	}
	prio := Priority(strings.ToUpper(strings.TrimSpace(gd.Priority)))
	switch prio {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return LogicGate{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidRubric, gd.Priority)
	}
	return LogicGate{
		TriggerBand: trigger,
		Enforcement: strings.TrimSpace(gd.Enforcement),
		Priority:    prio,
		Rule:        rule,
	}, nil
}

// #endregion load

// #region rule-parsing
var ruleRE = regexp.MustCompile(`^\s*(MAX|ALLOW)_([A-Z]+)\s*=\s*([A-Z]+)(\d+)\s*$`)

// ParseRule parses an enforcement string of the form "MAX_TD = TD2" or
// "ALLOW_TD = TD3".
func ParseRule(s string) (Rule, error) {
	m := ruleRE.FindStringSubmatch(strings.ToUpper(s))
	if m == nil {
		return Rule{}, fmt.Errorf("%w: unparsable enforcement rule %q", ErrInvalidRubric, s)
	}
	if m[2] != m[3] {
		return Rule{}, fmt.Errorf("%w: rule %q mixes dimensions %s and %s", ErrInvalidRubric, s, m[2], m[3])
	}
	limit, err := strconv.Atoi(m[4])
	if err != nil {
		return Rule{}, fmt.Errorf("%w: rule %q limit: %v", ErrInvalidRubric, s, err)
	}
	return Rule{Operator: Operator(m[1]), Dimension: m[2], Limit: limit}, nil
}

// SplitBandID splits "TD4" into ("TD", 4). ok is false when the id is not
// letters followed by digits.
func SplitBandID(id string) (prefix string, level int, ok bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	i := 0
	for i < len(id) && id[i] >= 'A' && id[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(id) {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return id[:i], n, true
}

func normalizeToken(tok string) string {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if !strings.HasPrefix(tok, "/") {
		tok = "/" + tok
	}
	return tok
}

// #endregion rule-parsing

// #region queries
// Version returns the rubric source version string.
func (c *Catalog) Version() string { return c.version }

// Dimensions returns the dimensions in source order.
func (c *Catalog) Dimensions() []Dimension {
	return append([]Dimension(nil), c.dimensions...)
}

// Dimension looks up a dimension by id.
func (c *Catalog) Dimension(id string) (Dimension, bool) {
	i, ok := c.dimIndex[strings.ToUpper(id)]
	if !ok {
		return Dimension{}, false
	}
	return c.dimensions[i], true
}

// FindBand looks up a band by its globally unique id.
func (c *Catalog) FindBand(id string) (Band, bool) {
	b, ok := c.bands[strings.ToUpper(strings.TrimSpace(id))]
	return b, ok
}

// DimensionOf maps a band id to its dimension id by prefix. The dimension
// must exist in the catalog; the band itself need not.
func (c *Catalog) DimensionOf(bandID string) (string, bool) {
	if dim, ok := c.bandDim[strings.ToUpper(strings.TrimSpace(bandID))]; ok {
		return dim, true
	}
	prefix, _, ok := SplitBandID(bandID)
	if !ok {
		return "", false
	}
	if _, ok := c.dimIndex[prefix]; !ok {
		return "", false
	}
	return prefix, true
}

// Level returns the numeric suffix of a band id, or 0 when it has none.
func Level(bandID string) int {
	_, n, ok := SplitBandID(bandID)
	if !ok {
		return 0
	}
	return n
}

// AllBandIDs returns the set of every band id.
func (c *Catalog) AllBandIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(c.bands))
	for id := range c.bands {
		out[id] = struct{}{}
	}
	return out
}

// AllCommandTokens returns the set of every command token.
func (c *Catalog) AllCommandTokens() map[string]struct{} {
	out := make(map[string]struct{}, len(c.cmdIndex))
	for tok := range c.cmdIndex {
		out[tok] = struct{}{}
	}
	return out
}

// Commands returns the command library sorted by token.
func (c *Catalog) Commands() []Command {
	return append([]Command(nil), c.commands...)
}

// Command looks up a command by token.
func (c *Catalog) Command(token string) (Command, bool) {
	cmd, ok := c.cmdIndex[normalizeToken(token)]
	return cmd, ok
}

// Alias resolves a near-miss command token through the healing map.
func (c *Catalog) Alias(token string) (string, bool) {
	to, ok := c.aliases[normalizeToken(token)]
	return to, ok
}

// LogicGates returns the gates in source order.
func (c *Catalog) LogicGates() []LogicGate {
	return append([]LogicGate(nil), c.gates...)
}

// CycleOrder returns metadata.cycle.order.
func (c *Catalog) CycleOrder() []string {
	return append([]string(nil), c.cycle...)
}

// #endregion queries
