package state

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// BoardZone is the zone template produced by the board-layout editor. Only
// the fields the engine consumes are modeled; layout geometry stays in the
// editor's domain.
type BoardZone struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Owner      string                 `json:"owner"` // "player", "opponent" or "neutral"
	Capacity   int                    `json:"capacity"`
	Visibility string                 `json:"visibility"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// CardPoolEntry is one card of a player's deck list as handed to
// NewMatchState. Attack/Health are pointers because non-unit cards carry
// neither.
type CardPoolEntry struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Cost       int                    `json:"cost"`
	Attack     *int                   `json:"attack"`
	Health     *int                   `json:"health"`
	Keywords   []Keyword              `json:"keywords"`
	Properties map[string]interface{} `json:"properties"`
}

// MatchParams carries everything needed to construct the initial WAITING
// state of a match.
type MatchParams struct {
	MatchID          string
	GameID           string
	Player1ID        string
	Player1Name      string
	Player2ID        string
	Player2Name      string
	Player1DeckCards []CardPoolEntry
	Player2DeckCards []CardPoolEntry
	BoardZones       []BoardZone
	Settings         *GameSettings
	// Rand shuffles the decks; nil falls back to a time-seeded source.
	Rand *rand.Rand
}

// NewMatchState creates the initial GameState for a match: zones from the
// board template (or a default layout when the template is empty), both
// decks instantiated and shuffled into their deck zones, and both players
// at starting resources. Status is WAITING until StartMatch runs.
func NewMatchState(params MatchParams) *GameState {
	settings := DefaultGameSettings()
	if params.Settings != nil {
		settings = *params.Settings
	}

	rng := params.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	zones := make(map[string]*ZoneState)
	for _, bz := range params.BoardZones {
		var owner *PlayerNumber
		switch bz.Owner {
		case "player":
			p := Player1
			owner = &p
		case "opponent":
			p := Player2
			owner = &p
		}
		zones[bz.ID] = &ZoneState{ID: bz.ID, Name: bz.Name, Owner: owner, Cards: []*CardInstance{}}
	}
	if len(zones) == 0 {
		for _, z := range defaultZones() {
			zones[z.ID] = z
		}
	}

	st := &GameState{
		MatchID:       params.MatchID,
		GameID:        params.GameID,
		Status:        StatusWaiting,
		TurnNumber:    0,
		CurrentPlayer: Player1,
		TurnStartTime: time.Now().UnixMilli(),
		Players: map[PlayerNumber]*PlayerState{
			Player1: newPlayerState(params.Player1ID, params.Player1Name, settings),
			Player2: newPlayerState(params.Player2ID, params.Player2Name, settings),
		},
		Zones:     zones,
		Stack:     []EffectStackItem{},
		History:   []GameAction{},
		Variables: map[string]interface{}{},
	}

	player1Deck := buildDeck(params.Player1DeckCards, Player1)
	player2Deck := buildDeck(params.Player2DeckCards, Player2)
	shuffleCards(player1Deck, rng)
	shuffleCards(player2Deck, rng)

	if zone := st.FindZone(Player1, "deck"); zone != nil {
		zone.Cards = player1Deck
	}
	if zone := st.FindZone(Player2, "deck"); zone != nil {
		zone.Cards = player2Deck
	}

	return st
}

func newPlayerState(id, name string, settings GameSettings) *PlayerState {
	return &PlayerState{
		ID:        id,
		Name:      name,
		Mana:      settings.StartingMana,
		MaxMana:   settings.StartingMana,
		Health:    settings.StartingHealth,
		MaxHealth: settings.StartingHealth,
	}
}

func defaultZones() []*ZoneState {
	p1, p2 := Player1, Player2
	return []*ZoneState{
		{ID: "player-deck", Name: "Your Deck", Owner: &p1, Cards: []*CardInstance{}},
		{ID: "player-hand", Name: "Your Hand", Owner: &p1, Cards: []*CardInstance{}},
		{ID: "player-board", Name: "Your Board", Owner: &p1, Cards: []*CardInstance{}},
		{ID: "opp-deck", Name: "Opponent Deck", Owner: &p2, Cards: []*CardInstance{}},
		{ID: "opp-hand", Name: "Opponent Hand", Owner: &p2, Cards: []*CardInstance{}},
		{ID: "opp-board", Name: "Opponent Board", Owner: &p2, Cards: []*CardInstance{}},
	}
}

func buildDeck(pool []CardPoolEntry, owner PlayerNumber) []*CardInstance {
	deck := make([]*CardInstance, len(pool))
	for i, entry := range pool {
		deck[i] = NewCardInstance(entry, owner, i)
	}
	return deck
}

// NewCardInstance instantiates a card definition for a player. The
// instance id is unique for the lifetime of the match; base stats are an
// immutable snapshot of the definition at creation.
func NewCardInstance(entry CardPoolEntry, owner PlayerNumber, position int) *CardInstance {
	attack, health := 0, 0
	if entry.Attack != nil {
		attack = *entry.Attack
	}
	if entry.Health != nil {
		health = *entry.Health
	}
	base := CardStats{Cost: entry.Cost, Attack: attack, Health: health, MaxHealth: health}

	keywords := make([]Keyword, len(entry.Keywords))
	copy(keywords, entry.Keywords)

	props := deepCopyMap(entry.Properties)
	if props == nil {
		props = map[string]interface{}{}
	}
	if entry.Type != "" {
		if _, ok := props["type"]; !ok {
			props["type"] = entry.Type
		}
	}

	return &CardInstance{
		InstanceID:     "inst_" + uuid.New().String(),
		CardID:         entry.ID,
		Owner:          owner,
		Controller:     owner,
		Position:       position,
		BaseStats:      base,
		CurrentStats:   base,
		AttacksPerTurn: 1,
		SummoningSickness: true,
		Modifiers:      []Modifier{},
		Keywords:       keywords,
		Properties:     props,
	}
}

// shuffleCards performs a Fisher-Yates shuffle in place.
func shuffleCards(cards []*CardInstance, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}
