package flow

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crynxmartinez/dueler/internal/game/state"
)

// ErrBudgetExceeded aborts a flow whose graph walk ran past the step
// budget. Cyclic or runaway user-authored graphs fail this way instead of
// exhausting the process.
var ErrBudgetExceeded = errors.New("flow execution budget exceeded")

// DefaultStepBudget bounds the number of node executions per flow.
const DefaultStepBudget = 10000

// Context carries the situation a flow executes in: the card that owns the
// effect, the resolved targets, and seed variables.
type Context struct {
	TriggerType TriggerType
	SourceCard  *state.CardInstance
	TargetCards []*state.CardInstance
	Variables   map[string]interface{}
}

// Result reports one flow execution. State is always populated; when
// Success is false the engine discards it.
type Result struct {
	State   *state.GameState
	Success bool
	Err     error
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRand injects the random source used by randomChance, randomCard and
// variable/random nodes.
func WithRand(rng *rand.Rand) Option {
	return func(i *Interpreter) { i.rng = rng }
}

// WithLogger injects the diagnostic logger for swallowed no-op conditions.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

// WithStepBudget overrides the node execution budget.
func WithStepBudget(budget int) Option {
	return func(i *Interpreter) { i.budget = budget }
}

// Interpreter executes one effect graph against a clone of the state it
// was constructed with. One interpreter serves one execution; variables
// are seeded from the context and private to the run.
type Interpreter struct {
	state  *state.GameState
	ctx    Context
	vars   map[string]interface{}
	rng    *rand.Rand
	logger *zap.Logger
	budget int
	steps  int
}

// NewInterpreter clones the given state and prepares a single execution.
func NewInterpreter(s *state.GameState, ctx Context, opts ...Option) *Interpreter {
	vars := make(map[string]interface{}, len(ctx.Variables))
	for k, v := range ctx.Variables {
		vars[k] = v
	}
	interp := &Interpreter{
		state:  s.Clone(),
		ctx:    ctx,
		vars:   vars,
		logger: zap.NewNop(),
		budget: DefaultStepBudget,
	}
	for _, opt := range opts {
		opt(interp)
	}
	if interp.rng == nil {
		interp.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return interp
}

// Execute walks the graph from its trigger node. A flow without a trigger
// is a successful no-op; this supports flows authored without a trigger
// stub during editing. Budget exhaustion fails the flow but never the
// process.
func (i *Interpreter) Execute(f *Flow) Result {
	trigger := f.TriggerNode()
	if trigger == nil {
		i.logger.Debug("flow has no trigger node, skipping")
		return Result{State: i.state, Success: true}
	}

	if err := i.execNode(trigger, f); err != nil {
		i.logger.Warn("flow execution failed", zap.Error(err), zap.Int("steps", i.steps))
		return Result{State: i.state, Success: false, Err: err}
	}
	return Result{State: i.state, Success: true}
}

// execNode runs one node and recurses into its outgoing edges. Every node
// type except condition and loop continues along the default handle.
func (i *Interpreter) execNode(node *Node, f *Flow) error {
	i.steps++
	if i.steps > i.budget {
		return ErrBudgetExceeded
	}

	switch node.Type {
	case NodeTrigger:
		// Entry point only; passes through.
		return i.followHandle(node.ID, f, HandleDefault)
	case NodeAction:
		if node.Action != nil {
			i.execAction(node.Action)
		}
		return i.followHandle(node.ID, f, HandleDefault)
	case NodeCondition:
		return i.execCondition(node, f)
	case NodeTarget:
		if node.Target != nil {
			i.execTarget(node.Target)
		}
		return i.followHandle(node.ID, f, HandleDefault)
	case NodeVariable:
		if node.Variable != nil {
			i.execVariable(node.Variable)
		}
		return i.followHandle(node.ID, f, HandleDefault)
	case NodeLoop:
		return i.execLoop(node, f)
	}
	// Unknown node types are no-ops with no outgoing walk.
	i.logger.Debug("unknown node type", zap.String("node", node.ID), zap.String("type", string(node.Type)))
	return nil
}

// followHandle executes every node reachable on the given handle,
// depth-first in edge-array order. A node with multiple outgoing edges on
// one handle fans out; diamond-shaped graphs re-execute shared downstream
// nodes once per incoming path.
func (i *Interpreter) followHandle(nodeID string, f *Flow, handle string) error {
	for _, edge := range f.Edges {
		if edge.Source != nodeID {
			continue
		}
		edgeHandle := edge.SourceHandle
		if edgeHandle == "" {
			edgeHandle = HandleDefault
		}
		if edgeHandle != handle {
			continue
		}
		next := f.NodeByID(edge.Target)
		if next == nil {
			// Dangling edges are a data-shape error, treated as no-ops.
			i.logger.Debug("edge targets missing node", zap.String("edge", edge.ID), zap.String("target", edge.Target))
			continue
		}
		if err := i.execNode(next, f); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) execAction(data *ActionData) {
	switch data.ActionType {
	case ActionDealDamage:
		amount := data.Amount.Resolve(i.vars)
		for _, target := range i.ctx.TargetCards {
			i.state = state.DealDamage(i.state, target.InstanceID, amount)
		}
	case ActionHeal:
		amount := data.Amount.Resolve(i.vars)
		for _, target := range i.ctx.TargetCards {
			i.state = state.HealTarget(i.state, target.InstanceID, amount)
		}
	case ActionDrawCards:
		amount := data.Amount.Resolve(i.vars)
		player := state.Player1
		if i.ctx.SourceCard != nil {
			player = i.ctx.SourceCard.Controller
		}
		i.state = state.DrawCards(i.state, player, amount)
	case ActionChangeStat:
		amount := data.Amount.Resolve(i.vars)
		for _, target := range i.ctx.TargetCards {
			card := i.state.GetCardInstance(target.InstanceID)
			if card == nil {
				continue
			}
			if _, ok := card.CurrentStats.Get(data.StatType); !ok {
				i.logger.Debug("changeStat ignoring unknown stat", zap.String("stat", data.StatType))
				continue
			}
			card.CurrentStats.Add(data.StatType, amount)
		}
	case ActionDestroy:
		for _, target := range i.ctx.TargetCards {
			card := i.state.GetCardInstance(target.InstanceID)
			if card != nil {
				card.IsDead = true
				card.CurrentStats.Health = 0
			}
		}
	case ActionAddKeyword:
		for _, target := range i.ctx.TargetCards {
			card := i.state.GetCardInstance(target.InstanceID)
			if card != nil && !card.HasKeyword(data.KeywordName) {
				card.Keywords = append(card.Keywords, state.Keyword{Name: data.KeywordName})
			}
		}
	case ActionSilence:
		// The only path that reverts prior stat-altering effects: clears
		// keywords and modifiers and resets current stats to base.
		for _, target := range i.ctx.TargetCards {
			card := i.state.GetCardInstance(target.InstanceID)
			if card != nil {
				card.Keywords = []state.Keyword{}
				card.Modifiers = []state.Modifier{}
				card.CurrentStats = card.BaseStats
			}
		}
	case ActionSendToHand:
		for _, target := range i.ctx.TargetCards {
			card := i.state.GetCardInstance(target.InstanceID)
			if card == nil {
				continue
			}
			hand := i.state.FindZone(card.Owner, "hand")
			if hand == nil {
				continue
			}
			i.state = state.MoveCard(i.state, target.InstanceID, hand.ID, -1)
		}
	default:
		i.logger.Debug("unknown action type", zap.String("actionType", string(data.ActionType)))
	}
}

// execCondition evaluates the node's boolean and follows exactly one of
// the "true"/"false" edge sets, never both.
func (i *Interpreter) execCondition(node *Node, f *Flow) error {
	result := false
	if data := node.Condition; data != nil {
		switch data.ConditionType {
		case ConditionCompareStat:
			if len(i.ctx.TargetCards) > 0 {
				target := i.ctx.TargetCards[0]
				if card := i.state.GetCardInstance(target.InstanceID); card != nil {
					target = card
				}
				statValue, _ := target.CurrentStats.Get(data.StatType)
				result = compare(statValue, data.Operator, data.Value.Resolve(i.vars))
			}
		case ConditionTargetExists:
			result = len(i.ctx.TargetCards) > 0
		case ConditionRandomChance:
			chance := 50.0
			if data.Chance != nil {
				chance = *data.Chance
			}
			result = i.rng.Float64()*100 < chance
		case ConditionCheckKeyword:
			for _, target := range i.ctx.TargetCards {
				if target.HasKeyword(data.KeywordName) {
					result = true
					break
				}
			}
		case ConditionCheckClass:
			for _, target := range i.ctx.TargetCards {
				if cardHasClass(target, data.ClassName) {
					result = true
					break
				}
			}
		default:
			i.logger.Debug("unknown condition type", zap.String("conditionType", string(data.ConditionType)))
		}
	}

	handle := HandleFalse
	if result {
		handle = HandleTrue
	}
	return i.followHandle(node.ID, f, handle)
}

func (i *Interpreter) execTarget(data *TargetData) {
	var targets []*state.CardInstance

	switch data.TargetType {
	case TargetThisCard:
		if i.ctx.SourceCard != nil {
			targets = []*state.CardInstance{i.ctx.SourceCard}
		}
	case TargetCardWithCriteria, TargetRandomCard, TargetAllMatchingCards:
		targets = i.findMatchingCards(data.Location, data.PlayerFilter, data.CardType)
		if data.TargetType == TargetRandomCard && len(targets) > 0 {
			count := data.Count.ResolveOr(i.vars, 1)
			if count < 1 {
				count = 1
			}
			targets = i.shuffleAndTake(targets, count)
		}
	default:
		i.logger.Debug("unknown target type", zap.String("targetType", string(data.TargetType)))
	}

	i.ctx.TargetCards = targets
}

func (i *Interpreter) execVariable(data *VariableData) {
	switch data.VariableType {
	case VariableAssign:
		if data.VariableName != "" {
			i.vars[data.VariableName] = data.Value.Resolve(i.vars)
		}
	case VariableMath:
		op1 := data.Operand1.Resolve(i.vars)
		op2 := data.Operand2.Resolve(i.vars)
		result := 0
		switch data.MathOperator {
		case MathAdd:
			result = op1 + op2
		case MathSubtract:
			result = op1 - op2
		case MathMultiply:
			result = op1 * op2
		case MathDivide:
			if op2 != 0 {
				result = op1 / op2
			}
		case MathMin:
			result = min(op1, op2)
		case MathMax:
			result = max(op1, op2)
		}
		if data.VariableName != "" {
			i.vars[data.VariableName] = result
		}
	case VariableRandom:
		lo, hi := 1, 6
		if data.MinValue != nil {
			lo = *data.MinValue
		}
		if data.MaxValue != nil {
			hi = *data.MaxValue
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		if data.VariableName != "" {
			i.vars[data.VariableName] = lo + i.rng.Intn(hi-lo+1)
		}
	case VariableCountCards:
		if data.VariableName != "" {
			i.vars[data.VariableName] = len(i.findMatchingCards(data.Location, data.PlayerFilter, data.CardType))
		}
	default:
		i.logger.Debug("unknown variable type", zap.String("variableType", string(data.VariableType)))
	}
}

// execLoop runs the body subgraph per iteration, sharing the interpreter's
// variables so accumulators persist across iterations, then continues via
// the "next" handle exactly once.
func (i *Interpreter) execLoop(node *Node, f *Flow) error {
	if data := node.Loop; data != nil {
		switch data.LoopType {
		case LoopRepeatTimes:
			count := data.Count.Resolve(i.vars)
			for iter := 0; iter < count; iter++ {
				i.vars["_loopIndex"] = iter
				if err := i.followHandle(node.ID, f, HandleBody); err != nil {
					return err
				}
			}
		case LoopForEach:
			iterator := data.IteratorName
			if iterator == "" {
				iterator = "card"
			}
			for _, target := range i.ctx.TargetCards {
				i.vars[iterator] = target
				if err := i.followHandle(node.ID, f, HandleBody); err != nil {
					return err
				}
			}
		default:
			i.logger.Debug("unknown loop type", zap.String("loopType", string(data.LoopType)))
		}
	}
	return i.followHandle(node.ID, f, HandleNext)
}

// findMatchingCards scans all zones in sorted order and filters by zone
// name substring, player filter relative to the source card's owner, and
// card type property. Dead cards are always excluded.
func (i *Interpreter) findMatchingCards(location, playerFilter, cardType string) []*state.CardInstance {
	var cards []*state.CardInstance

	for _, zoneID := range i.state.ZoneIDs() {
		zone := i.state.Zones[zoneID]

		if location != "" && location != "anywhere" {
			if !strings.Contains(strings.ToLower(zone.Name), strings.ToLower(location)) {
				continue
			}
		}

		if playerFilter != "" && playerFilter != "any" {
			var want *state.PlayerNumber
			if i.ctx.SourceCard != nil {
				owner := i.ctx.SourceCard.Owner
				if playerFilter == "opponent" {
					owner = owner.Opponent()
				}
				want = &owner
			}
			if want != nil && (zone.Owner == nil || *zone.Owner != *want) {
				continue
			}
		}

		for _, c := range zone.Cards {
			if c.IsDead {
				continue
			}
			if cardType != "" && !strings.EqualFold(cardTypeOf(c), cardType) {
				continue
			}
			cards = append(cards, c)
		}
	}

	return cards
}

// shuffleAndTake returns up to count cards from a Fisher-Yates shuffle of
// the input.
func (i *Interpreter) shuffleAndTake(cards []*state.CardInstance, count int) []*state.CardInstance {
	shuffled := append([]*state.CardInstance(nil), cards...)
	for idx := len(shuffled) - 1; idx > 0; idx-- {
		j := i.rng.Intn(idx + 1)
		shuffled[idx], shuffled[j] = shuffled[j], shuffled[idx]
	}
	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}

func compare(a int, op Operator, b int) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}

func cardTypeOf(c *state.CardInstance) string {
	if t, ok := c.Properties["type"].(string); ok {
		return t
	}
	return ""
}

func cardHasClass(c *state.CardInstance, className string) bool {
	classes, ok := c.Properties["classes"].([]interface{})
	if !ok {
		return false
	}
	for _, cl := range classes {
		if s, ok := cl.(string); ok && s == className {
			return true
		}
	}
	return false
}
