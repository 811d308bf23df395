// Package state holds the typed representation of a running match and the
// pure mutators that produce new snapshots from it. Every mutator returns a
// fresh deep copy; callers never observe aliasing between successive
// snapshots, which keeps the engine safe to replay and persist.
package state

// MatchStatus is the lifecycle phase of a match.
type MatchStatus string

const (
	StatusWaiting    MatchStatus = "WAITING"
	StatusMulligan   MatchStatus = "MULLIGAN" // declared for forward compatibility; no transition reaches it
	StatusInProgress MatchStatus = "IN_PROGRESS"
	StatusCompleted  MatchStatus = "COMPLETED"
	StatusAbandoned  MatchStatus = "ABANDONED"
)

// PlayerNumber identifies one of the two seats in a match.
type PlayerNumber int

const (
	Player1 PlayerNumber = 1
	Player2 PlayerNumber = 2
)

// Opponent returns the other seat.
func (p PlayerNumber) Opponent() PlayerNumber {
	if p == Player1 {
		return Player2
	}
	return Player1
}

// Token returns the literal target token ("player1"/"player2") used by
// damage/heal targets and the attack action.
func (p PlayerNumber) Token() string {
	if p == Player1 {
		return TokenPlayer1
	}
	return TokenPlayer2
}

// Literal player target tokens accepted by DealDamage, HealTarget and the
// engine's attack action.
const (
	TokenPlayer1 = "player1"
	TokenPlayer2 = "player2"
)

// GameState is the single source of truth for one match. It must stay a
// plain JSON-compatible tree: the collaborator layer round-trips it
// through storage between every action call.
type GameState struct {
	MatchID       string                       `json:"matchId"`
	GameID        string                       `json:"gameId"`
	Status        MatchStatus                  `json:"status"`
	TurnNumber    int                          `json:"turnNumber"`
	CurrentPlayer PlayerNumber                 `json:"currentPlayer"`
	TurnStartTime int64                        `json:"turnStartTime"`
	Winner        *PlayerNumber                `json:"winner,omitempty"`
	Players       map[PlayerNumber]*PlayerState `json:"players"`
	Zones         map[string]*ZoneState        `json:"zones"`

	// Reserved for future effect queuing / replay / global scripting.
	// The engine does not consume Stack for resolution ordering; effects
	// execute synchronously.
	Stack     []EffectStackItem      `json:"stack"`
	History   []GameAction           `json:"history"`
	Variables map[string]interface{} `json:"variables"`
}

// PlayerState tracks one seat's resources.
type PlayerState struct {
	ID        string `json:"odId"`
	Name      string `json:"odName"`
	Mana      int    `json:"mana"`
	MaxMana   int    `json:"maxMana"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"maxHealth"`
	Overload  int    `json:"overload"`
	// Fatigue counts draws attempted from an empty deck; damage dealt per
	// empty draw equals the post-increment counter.
	Fatigue int `json:"fatigue"`
}

// ZoneState is an ordered collection of card instances. Zone membership is
// exclusive: an instance belongs to exactly one zone at a time.
type ZoneState struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Owner *PlayerNumber   `json:"owner"`
	Cards []*CardInstance `json:"cards"`
}

// CardStats is the numeric profile of a card instance.
type CardStats struct {
	Cost      int `json:"cost"`
	Attack    int `json:"attack"`
	Health    int `json:"health"`
	MaxHealth int `json:"maxHealth"`
}

// Get returns the named stat and whether the name is known.
func (s CardStats) Get(name string) (int, bool) {
	switch name {
	case "cost":
		return s.Cost, true
	case "attack":
		return s.Attack, true
	case "health":
		return s.Health, true
	case "maxHealth":
		return s.MaxHealth, true
	}
	return 0, false
}

// Add applies a delta to the named stat. Unknown names are ignored.
func (s *CardStats) Add(name string, delta int) {
	switch name {
	case "cost":
		s.Cost += delta
	case "attack":
		s.Attack += delta
	case "health":
		s.Health += delta
	case "maxHealth":
		s.MaxHealth += delta
	}
}

// Keyword is a named tag with an optional numeric value, e.g. {Taunt} or
// {Lifesteal 2}.
type Keyword struct {
	Name  string `json:"name"`
	Value *int   `json:"value,omitempty"`
}

// ModifierType classifies an applied modifier.
type ModifierType string

const (
	ModifierStatBuff      ModifierType = "stat_buff"
	ModifierStatDebuff    ModifierType = "stat_debuff"
	ModifierStatSet       ModifierType = "stat_set"
	ModifierKeywordAdd    ModifierType = "keyword_add"
	ModifierKeywordRemove ModifierType = "keyword_remove"
	ModifierSilence       ModifierType = "silence"
)

// ModifierDuration classifies how long a modifier is meant to last. Nothing
// in the engine decrements TurnsRemaining; only silence clears modifiers.
type ModifierDuration string

const (
	DurationPermanent   ModifierDuration = "permanent"
	DurationTurn        ModifierDuration = "turn"
	DurationEndOfTurn   ModifierDuration = "end_of_turn"
	DurationUntilPlayed ModifierDuration = "until_played"
)

// Modifier records a stat change applied to a card instance.
type Modifier struct {
	ID             string           `json:"id"`
	Source         string           `json:"source"`
	Type           ModifierType     `json:"type"`
	Stat           string           `json:"stat,omitempty"`
	Amount         int              `json:"amount,omitempty"`
	Duration       ModifierDuration `json:"duration,omitempty"`
	TurnsRemaining int              `json:"turnsRemaining,omitempty"`
}

// CardInstance is a concrete copy of a card definition in play.
type CardInstance struct {
	InstanceID string       `json:"instanceId"`
	CardID     string       `json:"cardId"`
	Owner      PlayerNumber `json:"owner"`
	// Controller may diverge from Owner under control-changing effects and
	// is authoritative for turn limits.
	Controller PlayerNumber `json:"controller"`
	Position   int          `json:"position"`
	FaceUp     bool         `json:"faceUp"`

	BaseStats    CardStats `json:"baseStats"`
	CurrentStats CardStats `json:"currentStats"`

	CanAttack         bool `json:"canAttack"`
	AttacksLeft       int  `json:"attacksLeft"`
	AttacksPerTurn    int  `json:"attacksPerTurn"`
	SummoningSickness bool `json:"summoningSickness"`
	// IsDead flags a card for the death-processing pass; the card stays in
	// its zone until that pass relocates it to a graveyard.
	IsDead bool `json:"isDead"`

	Modifiers []Modifier             `json:"modifiers"`
	Keywords  []Keyword              `json:"keywords"`
	Properties map[string]interface{} `json:"properties"`
}

// HasKeyword reports whether the instance carries the named keyword.
func (c *CardInstance) HasKeyword(name string) bool {
	for _, k := range c.Keywords {
		if k.Name == name {
			return true
		}
	}
	return false
}

// EffectStackItem is reserved future state for queued effect resolution.
type EffectStackItem struct {
	ID               string                 `json:"id"`
	SourceInstanceID string                 `json:"sourceInstanceId"`
	EffectFlow       interface{}            `json:"effectFlow"`
	Priority         int                    `json:"priority"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

// GameAction is an entry in the match's action log.
type GameAction struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	PlayerID  PlayerNumber           `json:"playerId"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// GameSettings are the tunables a game designer controls per game.
type GameSettings struct {
	StartingHealth     int  `json:"startingHealth" mapstructure:"starting_health"`
	StartingHandSize   int  `json:"startingHandSize" mapstructure:"starting_hand_size"`
	MaxHandSize        int  `json:"maxHandSize" mapstructure:"max_hand_size"`
	MaxBoardSize       int  `json:"maxBoardSize" mapstructure:"max_board_size"`
	StartingMana       int  `json:"startingMana" mapstructure:"starting_mana"`
	MaxMana            int  `json:"maxMana" mapstructure:"max_mana"`
	ManaPerTurn        int  `json:"manaPerTurn" mapstructure:"mana_per_turn"`
	TurnTimeLimit      int  `json:"turnTimeLimit" mapstructure:"turn_time_limit"`
	MulliganEnabled    bool `json:"mulliganEnabled" mapstructure:"mulligan_enabled"`
	MulliganCount      int  `json:"mulliganCount" mapstructure:"mulligan_count"`
	DeckMinSize        int  `json:"deckMinSize" mapstructure:"deck_min_size"`
	DeckMaxSize        int  `json:"deckMaxSize" mapstructure:"deck_max_size"`
	MaxCopiesPerCard   int  `json:"maxCopiesPerCard" mapstructure:"max_copies_per_card"`
	MaxLegendaryPerDeck int `json:"maxLegendaryPerDeck" mapstructure:"max_legendary_per_deck"`
}

// DefaultGameSettings returns the baseline settings partial overrides merge
// into.
func DefaultGameSettings() GameSettings {
	return GameSettings{
		StartingHealth:      30,
		StartingHandSize:    3,
		MaxHandSize:         10,
		MaxBoardSize:        7,
		StartingMana:        0,
		MaxMana:             10,
		ManaPerTurn:         1,
		TurnTimeLimit:       0,
		MulliganEnabled:     true,
		MulliganCount:       3,
		DeckMinSize:         30,
		DeckMaxSize:         30,
		MaxCopiesPerCard:    2,
		MaxLegendaryPerDeck: 1,
	}
}
