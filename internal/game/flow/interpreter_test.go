package flow

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crynxmartinez/dueler/internal/game/state"
)

func flowTestState() *state.GameState {
	p1, p2 := state.Player1, state.Player2
	return &state.GameState{
		MatchID:       "m1",
		GameID:        "g1",
		Status:        state.StatusInProgress,
		TurnNumber:    1,
		CurrentPlayer: state.Player1,
		Players: map[state.PlayerNumber]*state.PlayerState{
			state.Player1: {ID: "u1", Health: 30, MaxHealth: 30},
			state.Player2: {ID: "u2", Health: 30, MaxHealth: 30},
		},
		Zones: map[string]*state.ZoneState{
			"player-deck":  {ID: "player-deck", Name: "Your Deck", Owner: &p1, Cards: []*state.CardInstance{}},
			"player-hand":  {ID: "player-hand", Name: "Your Hand", Owner: &p1, Cards: []*state.CardInstance{}},
			"player-board": {ID: "player-board", Name: "Your Board", Owner: &p1, Cards: []*state.CardInstance{}},
			"opp-board":    {ID: "opp-board", Name: "Opponent Board", Owner: &p2, Cards: []*state.CardInstance{}},
		},
		Variables: map[string]interface{}{},
	}
}

func unit(instanceID string, owner state.PlayerNumber, attack, health int) *state.CardInstance {
	stats := state.CardStats{Attack: attack, Health: health, MaxHealth: health}
	return &state.CardInstance{
		InstanceID:   instanceID,
		CardID:       "card-" + instanceID,
		Owner:        owner,
		Controller:   owner,
		BaseStats:    stats,
		CurrentStats: stats,
		Properties:   map[string]interface{}{"type": "UNIT"},
	}
}

func triggerNode(id string) Node {
	return Node{ID: id, Type: NodeTrigger, Trigger: &TriggerData{TriggerType: TriggerInvoke}}
}

func seededRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func TestExecuteWithoutTriggerIsNoOp(t *testing.T) {
	st := flowTestState()
	f := &Flow{
		Nodes: []Node{{ID: "a", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(5)}}},
	}

	result := NewInterpreter(st, Context{}).Execute(f)

	assert.True(t, result.Success)
	assert.Equal(t, state.Checksum(st), state.Checksum(result.State))
}

func TestDealDamageWithEmptyTargets(t *testing.T) {
	st := flowTestState()
	st.Zones["player-board"].Cards = append(st.Zones["player-board"].Cards, unit("a", state.Player1, 3, 3))

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "a", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(5)}},
		},
		Edges: []Edge{{ID: "e1", Source: "t", Target: "a"}},
	}

	result := NewInterpreter(st, Context{TriggerType: TriggerInvoke}).Execute(f)

	require.True(t, result.Success)
	assert.Equal(t, 3, result.State.GetCardInstance("a").CurrentStats.Health)
	assert.Equal(t, 30, result.State.Players[state.Player1].Health)
}

func TestDealDamageToTargets(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 2, 4)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "a", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(3)}},
		},
		Edges: []Edge{{ID: "e1", Source: "t", Target: "a"}},
	}

	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(f)

	require.True(t, result.Success)
	assert.Equal(t, 1, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestConditionFollowsExactlyOneBranch(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 2, 2)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target)

	build := func(op Operator) *Flow {
		return &Flow{
			Nodes: []Node{
				triggerNode("t"),
				{ID: "c", Type: NodeCondition, Condition: &ConditionData{
					ConditionType: ConditionCompareStat, StatType: "health", Operator: op, Value: NumberValue(2),
				}},
				{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(1)}},
				{ID: "heal", Type: NodeAction, Action: &ActionData{ActionType: ActionHeal, Amount: NumberValue(1)}},
			},
			Edges: []Edge{
				{ID: "e1", Source: "t", Target: "c"},
				{ID: "e2", Source: "c", Target: "dmg", SourceHandle: "true"},
				{ID: "e3", Source: "c", Target: "heal", SourceHandle: "false"},
			},
		}
	}

	// health == 2 is true for eq: only the damage branch runs.
	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(build(OpEq))
	require.True(t, result.Success)
	assert.Equal(t, 1, result.State.GetCardInstance("a").CurrentStats.Health)

	// health == 2 is false for gt: only the heal branch runs (clamped).
	result = NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(build(OpGt))
	require.True(t, result.Success)
	assert.Equal(t, 2, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestCompareStatWithNoTargetsIsFalse(t *testing.T) {
	st := flowTestState()
	st.Zones["player-board"].Cards = append(st.Zones["player-board"].Cards, unit("a", state.Player1, 1, 1))

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "c", Type: NodeCondition, Condition: &ConditionData{
				ConditionType: ConditionCompareStat, StatType: "health", Operator: OpGte, Value: NumberValue(0),
			}},
			{ID: "mark", Type: NodeVariable, Variable: &VariableData{
				VariableType: VariableAssign, VariableName: "hit", Value: NumberValue(1),
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(9)}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "c"},
			{ID: "e2", Source: "c", Target: "mark", SourceHandle: "true"},
			{ID: "e3", Source: "c", Target: "dmg", SourceHandle: "false"},
		},
	}

	result := NewInterpreter(st, Context{}).Execute(f)
	require.True(t, result.Success)
	// The false branch ran but had no targets to damage.
	assert.Equal(t, 1, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestRandomChanceIsSeeded(t *testing.T) {
	st := flowTestState()
	chance := 50.0

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "c", Type: NodeCondition, Condition: &ConditionData{ConditionType: ConditionRandomChance, Chance: &chance}},
			{ID: "hit", Type: NodeAction, Action: &ActionData{ActionType: ActionDrawCards, Amount: NumberValue(1)}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "c"},
			{ID: "e2", Source: "c", Target: "hit", SourceHandle: "true"},
		},
	}

	run := func() string {
		result := NewInterpreter(st, Context{}, WithRand(seededRand())).Execute(f)
		require.True(t, result.Success)
		return state.Checksum(result.State)
	}

	assert.Equal(t, run(), run())
}

func TestTargetThisCard(t *testing.T) {
	st := flowTestState()
	source := unit("src", state.Player1, 2, 5)
	st.Zones["player-board"].Cards = append(st.Zones["player-board"].Cards, source)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "tgt", Type: NodeTarget, Target: &TargetData{TargetType: TargetThisCard}},
			{ID: "buff", Type: NodeAction, Action: &ActionData{ActionType: ActionChangeStat, StatType: "attack", Amount: NumberValue(2)}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "tgt"},
			{ID: "e2", Source: "tgt", Target: "buff"},
		},
	}

	result := NewInterpreter(st, Context{SourceCard: source}).Execute(f)
	require.True(t, result.Success)
	assert.Equal(t, 4, result.State.GetCardInstance("src").CurrentStats.Attack)
}

func TestTargetAllMatchingCardsFilters(t *testing.T) {
	st := flowTestState()
	source := unit("src", state.Player1, 1, 1)
	dead := unit("dead", state.Player2, 1, 1)
	dead.IsDead = true
	st.Zones["player-board"].Cards = append(st.Zones["player-board"].Cards, source)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards,
		unit("e1", state.Player2, 2, 3), unit("e2", state.Player2, 2, 3), dead)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "tgt", Type: NodeTarget, Target: &TargetData{
				TargetType: TargetAllMatchingCards, Location: "board", PlayerFilter: "opponent", CardType: "UNIT",
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(1)}},
		},
		Edges: []Edge{
			{ID: "ed1", Source: "t", Target: "tgt"},
			{ID: "ed2", Source: "tgt", Target: "dmg"},
		},
	}

	result := NewInterpreter(st, Context{SourceCard: source}).Execute(f)
	require.True(t, result.Success)

	// Both live enemy units hit; the dead one and the source untouched.
	assert.Equal(t, 2, result.State.GetCardInstance("e1").CurrentStats.Health)
	assert.Equal(t, 2, result.State.GetCardInstance("e2").CurrentStats.Health)
	assert.Equal(t, 1, result.State.GetCardInstance("dead").CurrentStats.Health)
	assert.Equal(t, 1, result.State.GetCardInstance("src").CurrentStats.Health)
}

func TestTargetRandomCardTakesCount(t *testing.T) {
	st := flowTestState()
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards,
		unit("e1", state.Player2, 1, 5), unit("e2", state.Player2, 1, 5), unit("e3", state.Player2, 1, 5))

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "tgt", Type: NodeTarget, Target: &TargetData{
				TargetType: TargetRandomCard, Location: "board", Count: NumberValue(2),
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(1)}},
		},
		Edges: []Edge{
			{ID: "ed1", Source: "t", Target: "tgt"},
			{ID: "ed2", Source: "tgt", Target: "dmg"},
		},
	}

	result := NewInterpreter(st, Context{}, WithRand(seededRand())).Execute(f)
	require.True(t, result.Success)

	damaged := 0
	for _, id := range []string{"e1", "e2", "e3"} {
		if result.State.GetCardInstance(id).CurrentStats.Health == 4 {
			damaged++
		}
	}
	assert.Equal(t, 2, damaged)
}

func TestVariableMathFeedsAction(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 1, 10)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "v1", Type: NodeVariable, Variable: &VariableData{
				VariableType: VariableAssign, VariableName: "base", Value: NumberValue(3),
			}},
			{ID: "v2", Type: NodeVariable, Variable: &VariableData{
				VariableType: VariableMath, VariableName: "dmg",
				MathOperator: MathMultiply, Operand1: StringValue("$base"), Operand2: NumberValue(2),
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: StringValue("$dmg")}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "v1"},
			{ID: "e2", Source: "v1", Target: "v2"},
			{ID: "e3", Source: "v2", Target: "dmg"},
		},
	}

	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(f)
	require.True(t, result.Success)
	assert.Equal(t, 4, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestVariableMathDivideByZero(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 1, 10)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "v", Type: NodeVariable, Variable: &VariableData{
				VariableType: VariableMath, VariableName: "dmg",
				MathOperator: MathDivide, Operand1: NumberValue(6), Operand2: NumberValue(0),
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: StringValue("$dmg")}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "v"},
			{ID: "e2", Source: "v", Target: "dmg"},
		},
	}

	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(f)
	require.True(t, result.Success)
	assert.Equal(t, 10, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestVariableCountCards(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 1, 10)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target, unit("b", state.Player2, 1, 1))
	st.Zones["player-board"].Cards = append(st.Zones["player-board"].Cards, unit("c", state.Player1, 1, 1))

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "v", Type: NodeVariable, Variable: &VariableData{
				VariableType: VariableCountCards, VariableName: "n", Location: "board",
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: StringValue("$n")}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "v"},
			{ID: "e2", Source: "v", Target: "dmg"},
		},
	}

	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(f)
	require.True(t, result.Success)
	assert.Equal(t, 7, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestLoopRepeatTimes(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 1, 10)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "loop", Type: NodeLoop, Loop: &LoopData{LoopType: LoopRepeatTimes, Count: NumberValue(3)}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(1)}},
			{ID: "after", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: StringValue("$_loopIndex")}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "loop"},
			{ID: "e2", Source: "loop", Target: "dmg", SourceHandle: "body"},
			{ID: "e3", Source: "loop", Target: "after", SourceHandle: "next"},
		},
	}

	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(f)
	require.True(t, result.Success)
	// Body runs 3 times for 1 each; "next" runs once with the last index (2).
	assert.Equal(t, 5, result.State.GetCardInstance("a").CurrentStats.Health)
}

func TestLoopForEachAccumulates(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 1, 10)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target, unit("b", state.Player2, 1, 10))

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "loop", Type: NodeLoop, Loop: &LoopData{LoopType: LoopForEach}},
			{ID: "inc", Type: NodeVariable, Variable: &VariableData{
				VariableType: VariableMath, VariableName: "n",
				MathOperator: MathAdd, Operand1: StringValue("$n"), Operand2: NumberValue(1),
			}},
			{ID: "dmg", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: StringValue("$n")}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "loop"},
			{ID: "e2", Source: "loop", Target: "inc", SourceHandle: "body"},
			{ID: "e3", Source: "loop", Target: "dmg", SourceHandle: "next"},
		},
	}

	targets := []*state.CardInstance{target, st.Zones["opp-board"].Cards[1]}
	result := NewInterpreter(st, Context{TargetCards: targets}).Execute(f)
	require.True(t, result.Success)
	// Two iterations accumulate n=2; both targets then take 2 damage.
	assert.Equal(t, 8, result.State.GetCardInstance("a").CurrentStats.Health)
	assert.Equal(t, 8, result.State.GetCardInstance("b").CurrentStats.Health)
}

func TestCyclicGraphExhaustsBudget(t *testing.T) {
	st := flowTestState()

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "a", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(0)}},
			{ID: "b", Type: NodeAction, Action: &ActionData{ActionType: ActionDealDamage, Amount: NumberValue(0)}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "t", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
			{ID: "e3", Source: "b", Target: "a"},
		},
	}

	result := NewInterpreter(st, Context{}, WithStepBudget(100)).Execute(f)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrBudgetExceeded)
	assert.NotNil(t, result.State)
}

func TestSilenceResetsCard(t *testing.T) {
	st := flowTestState()
	target := unit("a", state.Player2, 2, 4)
	target.CurrentStats.Attack = 6
	target.Keywords = []state.Keyword{{Name: "taunt"}}
	target.Modifiers = []state.Modifier{{ID: "m1", Type: state.ModifierStatBuff, Stat: "attack", Amount: 4}}
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, target)

	f := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "s", Type: NodeAction, Action: &ActionData{ActionType: ActionSilence}},
		},
		Edges: []Edge{{ID: "e1", Source: "t", Target: "s"}},
	}

	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{target}}).Execute(f)
	require.True(t, result.Success)

	card := result.State.GetCardInstance("a")
	assert.Equal(t, 2, card.CurrentStats.Attack)
	assert.Empty(t, card.Keywords)
	assert.Empty(t, card.Modifiers)
}

func TestDestroyAndSendToHand(t *testing.T) {
	st := flowTestState()
	victim := unit("a", state.Player2, 2, 4)
	bounced := unit("b", state.Player1, 1, 1)
	st.Zones["opp-board"].Cards = append(st.Zones["opp-board"].Cards, victim)
	st.Zones["player-board"].Cards = append(st.Zones["player-board"].Cards, bounced)

	destroy := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "d", Type: NodeAction, Action: &ActionData{ActionType: ActionDestroy}},
		},
		Edges: []Edge{{ID: "e1", Source: "t", Target: "d"}},
	}
	result := NewInterpreter(st, Context{TargetCards: []*state.CardInstance{victim}}).Execute(destroy)
	require.True(t, result.Success)
	assert.True(t, result.State.GetCardInstance("a").IsDead)

	bounce := &Flow{
		Nodes: []Node{
			triggerNode("t"),
			{ID: "b", Type: NodeAction, Action: &ActionData{ActionType: ActionSendToHand}},
		},
		Edges: []Edge{{ID: "e1", Source: "t", Target: "b"}},
	}
	result = NewInterpreter(st, Context{TargetCards: []*state.CardInstance{bounced}}).Execute(bounce)
	require.True(t, result.Success)
	zone := result.State.GetCardZone("b")
	require.NotNil(t, zone)
	assert.Equal(t, "player-hand", zone.ID)
}
