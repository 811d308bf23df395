package state

import (
	"sort"
	"strings"
)

// ZoneIDs returns all zone ids in sorted order. Every zone scan in the
// engine and interpreter iterates this slice so that identical inputs
// produce identical outputs regardless of map iteration order.
func (s *GameState) ZoneIDs() []string {
	ids := make([]string, 0, len(s.Zones))
	for id := range s.Zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone produces an independent deep copy of the state. Successive
// snapshots never share mutable memory.
func (s *GameState) Clone() *GameState {
	out := &GameState{
		MatchID:       s.MatchID,
		GameID:        s.GameID,
		Status:        s.Status,
		TurnNumber:    s.TurnNumber,
		CurrentPlayer: s.CurrentPlayer,
		TurnStartTime: s.TurnStartTime,
		Players:       make(map[PlayerNumber]*PlayerState, len(s.Players)),
		Zones:         make(map[string]*ZoneState, len(s.Zones)),
		Stack:         append([]EffectStackItem(nil), s.Stack...),
		History:       append([]GameAction(nil), s.History...),
		Variables:     deepCopyMap(s.Variables),
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	for num, p := range s.Players {
		cp := *p
		out.Players[num] = &cp
	}
	for id, z := range s.Zones {
		out.Zones[id] = z.clone()
	}
	return out
}

func (z *ZoneState) clone() *ZoneState {
	out := &ZoneState{
		ID:    z.ID,
		Name:  z.Name,
		Cards: make([]*CardInstance, len(z.Cards)),
	}
	if z.Owner != nil {
		o := *z.Owner
		out.Owner = &o
	}
	for i, c := range z.Cards {
		out.Cards[i] = c.clone()
	}
	return out
}

func (c *CardInstance) clone() *CardInstance {
	out := *c
	out.Modifiers = append([]Modifier(nil), c.Modifiers...)
	out.Keywords = append([]Keyword(nil), c.Keywords...)
	out.Properties = deepCopyMap(c.Properties)
	for i, k := range c.Keywords {
		if k.Value != nil {
			v := *k.Value
			out.Keywords[i].Value = &v
		}
	}
	return &out
}

// deepCopyMap copies a JSON-compatible tree of maps, slices and scalars.
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// GetCardInstance finds an instance by id with a linear scan across all
// zones. Returns nil when absent. Bounded zone/card counts per match keep
// this cheap.
func (s *GameState) GetCardInstance(instanceID string) *CardInstance {
	for _, zoneID := range s.ZoneIDs() {
		for _, c := range s.Zones[zoneID].Cards {
			if c.InstanceID == instanceID {
				return c
			}
		}
	}
	return nil
}

// GetCardZone returns the zone currently holding the instance, or nil.
func (s *GameState) GetCardZone(instanceID string) *ZoneState {
	for _, zoneID := range s.ZoneIDs() {
		zone := s.Zones[zoneID]
		for _, c := range zone.Cards {
			if c.InstanceID == instanceID {
				return zone
			}
		}
	}
	return nil
}

// FindZone returns the first zone (by sorted id) owned by the player whose
// name contains the given substring, case-insensitive. Returns nil when no
// zone matches.
func (s *GameState) FindZone(player PlayerNumber, nameContains string) *ZoneState {
	needle := strings.ToLower(nameContains)
	for _, zoneID := range s.ZoneIDs() {
		zone := s.Zones[zoneID]
		if zone.Owner == nil || *zone.Owner != player {
			continue
		}
		if strings.Contains(strings.ToLower(zone.Name), needle) {
			return zone
		}
	}
	return nil
}

// MoveCard removes the instance from whatever zone holds it and inserts it
// into the target zone at position (append when position < 0), then
// renumbers positions in the target zone. Returns the original state
// unchanged when the instance or target zone is not found; callers that
// care about membership must check beforehand.
func MoveCard(s *GameState, instanceID, targetZoneID string, position int) *GameState {
	next := s.Clone()

	var card *CardInstance
	for _, zoneID := range next.ZoneIDs() {
		zone := next.Zones[zoneID]
		for i, c := range zone.Cards {
			if c.InstanceID == instanceID {
				card = c
				zone.Cards = append(zone.Cards[:i], zone.Cards[i+1:]...)
				break
			}
		}
		if card != nil {
			break
		}
	}

	target, ok := next.Zones[targetZoneID]
	if card == nil || !ok {
		return s
	}

	if position >= 0 && position <= len(target.Cards) {
		target.Cards = append(target.Cards, nil)
		copy(target.Cards[position+1:], target.Cards[position:])
		target.Cards[position] = card
	} else {
		target.Cards = append(target.Cards, card)
	}

	for i, c := range target.Cards {
		c.Position = i
	}

	return next
}

// DrawCards pops count cards from the player's deck zone onto the end of
// their hand zone, marking each drawn card face up. When the deck
// underflows the player takes fatigue damage instead: fatigue increments
// per missing draw and the new counter value is subtracted from health, so
// N consecutive empty draws deal 1+2+...+N.
func DrawCards(s *GameState, player PlayerNumber, count int) *GameState {
	next := s.Clone()

	deck := next.FindZone(player, "deck")
	hand := next.FindZone(player, "hand")
	if deck == nil || hand == nil {
		return s
	}

	for i := 0; i < count; i++ {
		if len(deck.Cards) == 0 {
			next.Players[player].Fatigue++
			next.Players[player].Health -= next.Players[player].Fatigue
			continue
		}
		card := deck.Cards[0]
		deck.Cards = deck.Cards[1:]
		card.FaceUp = true
		hand.Cards = append(hand.Cards, card)
	}

	return next
}

// DealDamage subtracts amount from the target's current health with no
// floor. Targets are an instance id or the literal "player1"/"player2"
// tokens. A card whose health drops to 0 or below is flagged dead but left
// in place for the death-processing pass. Unknown targets are a no-op.
func DealDamage(s *GameState, targetID string, amount int) *GameState {
	next := s.Clone()

	switch targetID {
	case TokenPlayer1:
		next.Players[Player1].Health -= amount
		return next
	case TokenPlayer2:
		next.Players[Player2].Health -= amount
		return next
	}

	card := next.GetCardInstance(targetID)
	if card == nil {
		return s
	}
	card.CurrentStats.Health -= amount
	if card.CurrentStats.Health <= 0 {
		card.IsDead = true
	}
	return next
}

// HealTarget restores amount to the target's health, clamped to max
// health. Accepts the same targets as DealDamage.
func HealTarget(s *GameState, targetID string, amount int) *GameState {
	next := s.Clone()

	switch targetID {
	case TokenPlayer1, TokenPlayer2:
		player := Player1
		if targetID == TokenPlayer2 {
			player = Player2
		}
		p := next.Players[player]
		p.Health = min(p.Health+amount, p.MaxHealth)
		return next
	}

	card := next.GetCardInstance(targetID)
	if card == nil {
		return s
	}
	card.CurrentStats.Health = min(card.CurrentStats.Health+amount, card.CurrentStats.MaxHealth)
	return next
}
