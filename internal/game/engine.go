// Package game implements the rule orchestrator: a deterministic state
// machine over MatchStatus whose transitions are driven by the five action
// methods. The engine owns a private clone of the match state; callers get
// snapshots and never a live reference.
package game

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/crynxmartinez/dueler/internal/game/events"
	"github.com/crynxmartinez/dueler/internal/game/flow"
	"github.com/crynxmartinez/dueler/internal/game/state"
)

// Illegal-action errors. Each is returned before any state mutation.
var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrCardNotFound      = errors.New("card not found")
	ErrCardDefNotFound   = errors.New("card definition not found")
	ErrNotEnoughMana     = errors.New("not enough mana")
	ErrCannotAttack      = errors.New("cannot attack")
	ErrSummoningSickness = errors.New("summoning sickness")
	ErrDefenderNotFound  = errors.New("defender not found")
)

// Option configures an Engine.
type Option func(*Engine)

// WithEventBus injects the bus lifecycle events are emitted on. Without it
// the engine emits into the void.
func WithEventBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger injects the engine's diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRand injects the random source handed to flow interpreters. Fixing
// the seed makes random effect paths reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// Engine advances one match. It is single threaded and synchronous: every
// action method runs to completion before returning, and the caller is
// responsible for serializing actions per match.
type Engine struct {
	state    *state.GameState
	rules    []RuleCard
	cards    map[string]CardDefinition
	settings state.GameSettings

	bus    *events.Bus
	logger *zap.Logger
	rng    *rand.Rand
}

// NewEngine builds an engine over a deep clone of the given state. Disabled
// rules are dropped; the rest sort ascending by order with ties keeping
// their input position. A nil settings pointer means the defaults.
func NewEngine(st *state.GameState, rules []RuleCard, cards []CardDefinition, settings *state.GameSettings, opts ...Option) *Engine {
	enabled := make([]RuleCard, 0, len(rules))
	for _, r := range rules {
		if r.IsEnabled {
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Order < enabled[j].Order })

	cardIndex := make(map[string]CardDefinition, len(cards))
	for _, c := range cards {
		cardIndex[c.ID] = c
	}

	merged := state.DefaultGameSettings()
	if settings != nil {
		merged = *settings
	}

	e := &Engine{
		state:    st.Clone(),
		rules:    enabled,
		cards:    cardIndex,
		settings: merged,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// State returns an independent snapshot of the current state.
func (e *Engine) State() *state.GameState {
	return e.state.Clone()
}

// StartMatch moves the match from WAITING to IN_PROGRESS: runs INIT rules,
// deals starting hands (player 2 gets one extra card to offset going
// second), then starts player 1's first turn.
func (e *Engine) StartMatch() *state.GameState {
	e.state.Status = state.StatusInProgress
	e.state.TurnNumber = 1
	e.state.CurrentPlayer = state.Player1
	e.state.TurnStartTime = time.Now().UnixMilli()

	e.executeRulesByCategory(RuleInit)

	e.state = state.DrawCards(e.state, state.Player1, e.settings.StartingHandSize)
	e.state = state.DrawCards(e.state, state.Player2, e.settings.StartingHandSize+1)

	e.bus.Emit(events.New(events.EventMatchStart, map[string]interface{}{
		"matchId": e.state.MatchID,
	}))

	e.startTurn()

	return e.State()
}

// startTurn runs the turn-start sequence for the current player: mana
// growth and refill, overload payoff, the turn draw, attack-flag resets for
// every card in the player's zones, then PER_TURN rules.
func (e *Engine) startTurn() {
	player := e.state.CurrentPlayer
	p := e.state.Players[player]

	if p.MaxMana < e.settings.MaxMana {
		p.MaxMana += e.settings.ManaPerTurn
		if p.MaxMana > e.settings.MaxMana {
			p.MaxMana = e.settings.MaxMana
		}
	}
	p.Mana = p.MaxMana

	if p.Overload > 0 {
		p.Mana -= p.Overload
		p.Overload = 0
	}

	e.state = state.DrawCards(e.state, player, 1)

	for _, zoneID := range e.state.ZoneIDs() {
		zone := e.state.Zones[zoneID]
		if zone.Owner == nil || *zone.Owner != player {
			continue
		}
		for _, card := range zone.Cards {
			card.SummoningSickness = false
			card.AttacksLeft = card.AttacksPerTurn
			card.CanAttack = true
		}
	}

	e.executeRulesByCategory(RulePerTurn)

	e.bus.Emit(events.New(events.EventTurnStart, map[string]interface{}{
		"player": player,
		"turn":   e.state.TurnNumber,
	}))
}

// PlayCard spends the card's current cost and resolves it: CARD_PLAY rules,
// relocation to board (units, heroes) or graveyard (everything else), then
// the card's own effect flow. Mana is spent unconditionally before effect
// resolution; a failed effect does not refund it.
func (e *Engine) PlayCard(player state.PlayerNumber, cardInstanceID string, targetInstanceIDs []string, position int) (*state.GameState, error) {
	if e.state.CurrentPlayer != player {
		return nil, ErrNotYourTurn
	}

	card := e.state.GetCardInstance(cardInstanceID)
	if card == nil {
		return nil, ErrCardNotFound
	}

	def, ok := e.cards[card.CardID]
	if !ok {
		return nil, ErrCardDefNotFound
	}

	if card.CurrentStats.Cost > e.state.Players[player].Mana {
		return nil, ErrNotEnoughMana
	}
	e.state.Players[player].Mana -= card.CurrentStats.Cost

	e.executeRulesByCategory(RuleCardPlay)

	isUnit := def.Type == CardUnit || def.Type == CardHero
	if isUnit {
		if board := e.state.FindZone(player, "board"); board != nil {
			e.state = state.MoveCard(e.state, cardInstanceID, board.ID, position)
		}
		if played := e.state.GetCardInstance(cardInstanceID); played != nil {
			played.SummoningSickness = true
			played.CanAttack = false
			played.FaceUp = true
		}
	} else {
		graveyard := e.ensureGraveyardZone(player)
		e.state = state.MoveCard(e.state, cardInstanceID, graveyard, -1)
	}

	if def.EffectFlow != nil {
		targets := make([]*state.CardInstance, 0, len(targetInstanceIDs))
		for _, id := range targetInstanceIDs {
			if t := e.state.GetCardInstance(id); t != nil {
				targets = append(targets, t)
			}
		}

		interp := flow.NewInterpreter(e.state, flow.Context{
			TriggerType: flow.TriggerInvoke,
			SourceCard:  e.state.GetCardInstance(cardInstanceID),
			TargetCards: targets,
		}, flow.WithRand(e.rng), flow.WithLogger(e.logger))

		result := interp.Execute(def.EffectFlow)
		if result.Success {
			e.state = result.State
		} else {
			e.logger.Warn("card effect flow failed, state not adopted",
				zap.String("card", def.ID), zap.Error(result.Err))
		}
	}

	e.bus.Emit(events.New(events.EventCardPlayed, map[string]interface{}{
		"player":   player,
		"instance": cardInstanceID,
		"position": position,
	}))

	e.processDeaths()
	e.checkWinConditions()

	return e.State(), nil
}

// Attack resolves one declared attack. Against a "player1"/"player2" token
// the attacker's attack stat hits that player's health directly; against a
// card, DAMAGE rules run and both cards damage each other simultaneously.
// The attacker spends one attack either way.
func (e *Engine) Attack(player state.PlayerNumber, attackerInstanceID, defenderInstanceID string) (*state.GameState, error) {
	if e.state.CurrentPlayer != player {
		return nil, ErrNotYourTurn
	}

	attacker := e.state.GetCardInstance(attackerInstanceID)
	if attacker == nil {
		return nil, ErrCardNotFound
	}
	if !attacker.CanAttack || attacker.AttacksLeft <= 0 {
		return nil, ErrCannotAttack
	}
	if attacker.SummoningSickness {
		return nil, ErrSummoningSickness
	}

	isPlayerTarget := defenderInstanceID == state.TokenPlayer1 || defenderInstanceID == state.TokenPlayer2
	if !isPlayerTarget && e.state.GetCardInstance(defenderInstanceID) == nil {
		return nil, ErrDefenderNotFound
	}

	e.executeRulesByCategory(RuleCombat)

	e.bus.Emit(events.New(events.EventAttackDeclared, map[string]interface{}{
		"attacker": attackerInstanceID,
		"defender": defenderInstanceID,
	}))

	// Rules may have replaced the state; re-resolve the combatants so
	// damage and the attack spend land on the live snapshot.
	attacker = e.state.GetCardInstance(attackerInstanceID)
	if attacker == nil {
		e.processDeaths()
		e.checkWinConditions()
		return e.State(), nil
	}

	if isPlayerTarget {
		e.state = state.DealDamage(e.state, defenderInstanceID, attacker.CurrentStats.Attack)
	} else {
		e.executeRulesByCategory(RuleDamage)

		attacker = e.state.GetCardInstance(attackerInstanceID)
		defender := e.state.GetCardInstance(defenderInstanceID)
		if attacker != nil && defender != nil {
			attackerHit := attacker.CurrentStats.Attack
			defenderHit := defender.CurrentStats.Attack
			e.state = state.DealDamage(e.state, defenderInstanceID, attackerHit)
			e.state = state.DealDamage(e.state, attackerInstanceID, defenderHit)
		}
	}

	if attacker = e.state.GetCardInstance(attackerInstanceID); attacker != nil {
		attacker.AttacksLeft--
	}

	e.processDeaths()
	e.checkWinConditions()

	return e.State(), nil
}

// EndTurn passes control to the other player. The turn number advances
// only when control returns to player 1, so one "turn" spans both seats.
func (e *Engine) EndTurn() *state.GameState {
	player := e.state.CurrentPlayer

	e.bus.Emit(events.New(events.EventTurnEnd, map[string]interface{}{
		"player": player,
		"turn":   e.state.TurnNumber,
	}))

	e.state.CurrentPlayer = player.Opponent()
	if e.state.CurrentPlayer == state.Player1 {
		e.state.TurnNumber++
	}
	e.state.TurnStartTime = time.Now().UnixMilli()

	e.checkWinConditions()

	if e.state.Status == state.StatusInProgress {
		e.startTurn()
	}

	return e.State()
}

// Concede completes the match with the other player as winner, bypassing
// health checks.
func (e *Engine) Concede(player state.PlayerNumber) *state.GameState {
	winner := player.Opponent()
	e.state.Status = state.StatusCompleted
	e.state.Winner = &winner

	e.bus.Emit(events.New(events.EventGameOver, map[string]interface{}{
		"winner": winner,
		"reason": "concede",
	}))

	return e.State()
}

// executeRulesByCategory runs every enabled rule of the category through a
// fresh interpreter with no pre-bound source or targets; rule authors
// establish their own context with target nodes. A failed rule keeps the
// prior state and the match continues.
func (e *Engine) executeRulesByCategory(category RuleCategory) {
	for _, rule := range e.rules {
		if rule.Category != category || rule.FlowData == nil {
			continue
		}

		interp := flow.NewInterpreter(e.state, flow.Context{
			TriggerType: flow.TriggerRule,
		}, flow.WithRand(e.rng), flow.WithLogger(e.logger))

		result := interp.Execute(rule.FlowData)
		if result.Success {
			e.state = result.State
		} else {
			e.logger.Warn("rule flow failed, state not adopted",
				zap.String("rule", rule.ID), zap.String("category", string(category)), zap.Error(result.Err))
		}
	}
}

// processDeaths relocates every card flagged dead or at zero health into
// its owner's graveyard, creating that zone on first use. Relocation is not
// recursive: effects triggered by a death are not invoked here.
func (e *Engine) processDeaths() {
	type deadCard struct {
		instanceID string
		owner      state.PlayerNumber
	}
	var dead []deadCard
	for _, zoneID := range e.state.ZoneIDs() {
		for _, c := range e.state.Zones[zoneID].Cards {
			if c.IsDead || c.CurrentStats.Health <= 0 {
				dead = append(dead, deadCard{instanceID: c.InstanceID, owner: c.Owner})
			}
		}
	}

	for _, d := range dead {
		graveyard := e.ensureGraveyardZone(d.owner)
		e.state = state.MoveCard(e.state, d.instanceID, graveyard, -1)
		e.bus.Emit(events.New(events.EventCardDestroyed, map[string]interface{}{
			"instance": d.instanceID,
		}))
	}
}

// ensureGraveyardZone returns the id of the player's graveyard zone,
// creating one when the board template did not define it.
func (e *Engine) ensureGraveyardZone(player state.PlayerNumber) string {
	if zone := e.state.FindZone(player, "graveyard"); zone != nil {
		return zone.ID
	}

	id, name := "player-graveyard", "Your Graveyard"
	if player == state.Player2 {
		id, name = "opp-graveyard", "Opponent Graveyard"
	}
	owner := player
	e.state.Zones[id] = &state.ZoneState{ID: id, Name: name, Owner: &owner, Cards: []*state.CardInstance{}}
	return id
}

// checkWinConditions runs WIN_LOSE rules first so custom victory rules can
// complete the match, then applies the default rule on player health. The
// default check does not defer to a rule verdict; re-completing an already
// completed match is harmless.
func (e *Engine) checkWinConditions() {
	e.executeRulesByCategory(RuleWinLose)

	p1 := e.state.Players[state.Player1]
	p2 := e.state.Players[state.Player2]

	switch {
	case p1.Health <= 0 && p2.Health <= 0:
		e.state.Status = state.StatusCompleted
		e.state.Winner = nil
		e.bus.Emit(events.New(events.EventGameOver, map[string]interface{}{
			"winner": nil, "reason": "draw",
		}))
	case p1.Health <= 0:
		winner := state.Player2
		e.state.Status = state.StatusCompleted
		e.state.Winner = &winner
		e.bus.Emit(events.New(events.EventGameOver, map[string]interface{}{
			"winner": winner, "reason": "health",
		}))
	case p2.Health <= 0:
		winner := state.Player1
		e.state.Status = state.StatusCompleted
		e.state.Winner = &winner
		e.bus.Emit(events.New(events.EventGameOver, map[string]interface{}{
			"winner": winner, "reason": "health",
		}))
	}
}
