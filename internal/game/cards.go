package game

import (
	"github.com/crynxmartinez/dueler/internal/game/flow"
	"github.com/crynxmartinez/dueler/internal/game/state"
)

// CardType classifies a card definition. UNIT and HERO enter the board when
// played; everything else resolves and goes to the graveyard.
type CardType string

const (
	CardUnit      CardType = "UNIT"
	CardHero      CardType = "HERO"
	CardSpell     CardType = "SPELL"
	CardEquipment CardType = "EQUIPMENT"
)

// CardDefinition is the designer-authored template a CardInstance is
// stamped from. Attack/Health are pointers because non-unit cards carry
// neither.
type CardDefinition struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       CardType               `json:"type"`
	Cost       int                    `json:"cost"`
	Attack     *int                   `json:"attack"`
	Health     *int                   `json:"health"`
	EffectFlow *flow.Flow             `json:"effectFlow,omitempty"`
	Keywords   []state.Keyword        `json:"keywords"`
	Properties map[string]interface{} `json:"properties"`
}

// PoolEntry converts the definition into the deck-construction shape
// consumed by state.NewMatchState.
func (d CardDefinition) PoolEntry() state.CardPoolEntry {
	return state.CardPoolEntry{
		ID:         d.ID,
		Name:       d.Name,
		Type:       string(d.Type),
		Cost:       d.Cost,
		Attack:     d.Attack,
		Health:     d.Health,
		Keywords:   d.Keywords,
		Properties: d.Properties,
	}
}

// RuleCategory names when the engine runs a rule card. ELIGIBILITY,
// KEYWORDS and CUSTOM are authored in the editor but have no engine hook
// yet; they are carried so stored rules round-trip.
type RuleCategory string

const (
	RuleInit        RuleCategory = "INIT"
	RulePerTurn     RuleCategory = "PER_TURN"
	RuleCombat      RuleCategory = "COMBAT"
	RuleDamage      RuleCategory = "DAMAGE"
	RuleCardPlay    RuleCategory = "CARD_PLAY"
	RuleEligibility RuleCategory = "ELIGIBILITY"
	RuleWinLose     RuleCategory = "WIN_LOSE"
	RuleKeywords    RuleCategory = "KEYWORDS"
	RuleCustom      RuleCategory = "CUSTOM"
)

// RuleCard is a game-level rule expressed as an effect graph, run by the
// engine at the hook its category names.
type RuleCard struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Category  RuleCategory `json:"category"`
	FlowData  *flow.Flow   `json:"flowData"`
	IsEnabled bool         `json:"isEnabled"`
	Order     int          `json:"order"`
}
