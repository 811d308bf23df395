// Package flow defines the effect-graph format produced by the visual
// editor and the interpreter that executes one graph against a match
// state. Node payloads are closed tagged unions per node category; the
// wire format ({id,type,position,data} nodes plus {source,target,
// sourceHandle} edges) is accepted unchanged from the editor.
package flow

import (
	"encoding/json"
	"fmt"
)

// NodeType discriminates the node categories of an effect graph.
type NodeType string

const (
	NodeTrigger   NodeType = "trigger"
	NodeAction    NodeType = "action"
	NodeCondition NodeType = "condition"
	NodeTarget    NodeType = "target"
	NodeVariable  NodeType = "variable"
	NodeLoop      NodeType = "loop"
)

// Edge handles. An absent sourceHandle means the default output.
const (
	HandleDefault = "default"
	HandleTrue    = "true"
	HandleFalse   = "false"
	HandleBody    = "body"
	HandleNext    = "next"
)

// TriggerType names when a flow activates. The engine fires "invoke" for
// card effects and "rule" for rule cards; the remaining values are
// editor vocabulary carried for round-tripping.
type TriggerType string

const (
	TriggerInvoke    TriggerType = "invoke"
	TriggerRule      TriggerType = "rule"
	TriggerTurnStart TriggerType = "turnStart"
	TriggerTurnEnd   TriggerType = "turnEnd"
	TriggerDamaged   TriggerType = "damaged"
	TriggerDestroyed TriggerType = "destroyed"
	TriggerOffensive TriggerType = "offensive"
	TriggerDefensive TriggerType = "defensive"
	TriggerMatchInit TriggerType = "matchInit"
	TriggerCardDraw  TriggerType = "cardDraw"
	TriggerCustom    TriggerType = "custom"
)

// ActionType names what an action node does.
type ActionType string

const (
	ActionDealDamage ActionType = "dealDamage"
	ActionHeal       ActionType = "heal"
	ActionDrawCards  ActionType = "drawCards"
	ActionChangeStat ActionType = "changeStat"
	ActionDestroy    ActionType = "destroy"
	ActionAddKeyword ActionType = "addKeyword"
	ActionSilence    ActionType = "silence"
	ActionSendToHand ActionType = "sendToHand"
)

// ConditionType names the boolean checks a condition node can make.
type ConditionType string

const (
	ConditionCompareStat  ConditionType = "compareStat"
	ConditionTargetExists ConditionType = "targetExists"
	ConditionRandomChance ConditionType = "randomChance"
	ConditionCheckKeyword ConditionType = "checkKeyword"
	ConditionCheckClass   ConditionType = "checkClass"
)

// Operator is a comparison operator for compareStat.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// TargetType names how a target node selects cards.
type TargetType string

const (
	TargetThisCard         TargetType = "thisCard"
	TargetCardWithCriteria TargetType = "cardWithCriteria"
	TargetRandomCard       TargetType = "randomCard"
	TargetAllMatchingCards TargetType = "allMatchingCards"
)

// VariableType names the value operations of a variable node.
type VariableType string

const (
	VariableAssign     VariableType = "assign"
	VariableMath       VariableType = "math"
	VariableRandom     VariableType = "random"
	VariableCountCards VariableType = "countCards"
)

// MathOperator is a binary operator for variable/math nodes.
type MathOperator string

const (
	MathAdd      MathOperator = "add"
	MathSubtract MathOperator = "subtract"
	MathMultiply MathOperator = "multiply"
	MathDivide   MathOperator = "divide"
	MathMin      MathOperator = "min"
	MathMax      MathOperator = "max"
)

// LoopType names the repetition strategies of a loop node.
type LoopType string

const (
	LoopForEach     LoopType = "forEach"
	LoopRepeatTimes LoopType = "repeatTimes"
)

// TriggerData is the payload of a trigger node.
type TriggerData struct {
	Label       string      `json:"label,omitempty"`
	TriggerType TriggerType `json:"triggerType"`
}

// ActionData is the payload of an action node.
type ActionData struct {
	Label       string     `json:"label,omitempty"`
	ActionType  ActionType `json:"actionType"`
	Amount      Value      `json:"amount,omitempty"`
	StatType    string     `json:"statType,omitempty"`
	CardID      string     `json:"cardId,omitempty"`
	KeywordName string     `json:"keywordName,omitempty"`
	ClassName   string     `json:"className,omitempty"`
}

// ConditionData is the payload of a condition node.
type ConditionData struct {
	Label         string        `json:"label,omitempty"`
	ConditionType ConditionType `json:"conditionType"`
	Operator      Operator      `json:"operator,omitempty"`
	Value         Value         `json:"value,omitempty"`
	StatType      string        `json:"statType,omitempty"`
	KeywordName   string        `json:"keywordName,omitempty"`
	ClassName     string        `json:"className,omitempty"`
	CardType      string        `json:"cardType,omitempty"`
	Chance        *float64      `json:"chance,omitempty"`
}

// TargetData is the payload of a target node. Location matches zone names
// by case-insensitive substring; PlayerFilter resolves relative to the
// source card's owner.
type TargetData struct {
	Label        string     `json:"label,omitempty"`
	TargetType   TargetType `json:"targetType"`
	Location     string     `json:"location,omitempty"`
	PlayerFilter string     `json:"playerFilter,omitempty"`
	CardType     string     `json:"cardType,omitempty"`
	Count        Value      `json:"count,omitempty"`
}

// VariableData is the payload of a variable node. Criteria fields apply to
// countCards.
type VariableData struct {
	Label        string       `json:"label,omitempty"`
	VariableType VariableType `json:"variableType"`
	VariableName string       `json:"variableName,omitempty"`
	Value        Value        `json:"value,omitempty"`
	MathOperator MathOperator `json:"mathOperator,omitempty"`
	Operand1     Value        `json:"operand1,omitempty"`
	Operand2     Value        `json:"operand2,omitempty"`
	MinValue     *int         `json:"minValue,omitempty"`
	MaxValue     *int         `json:"maxValue,omitempty"`
	Location     string       `json:"location,omitempty"`
	PlayerFilter string       `json:"playerFilter,omitempty"`
	CardType     string       `json:"cardType,omitempty"`
}

// LoopData is the payload of a loop node.
type LoopData struct {
	Label        string   `json:"label,omitempty"`
	LoopType     LoopType `json:"loopType"`
	Count        Value    `json:"count,omitempty"`
	IteratorName string   `json:"iteratorName,omitempty"`
}

// Position is the editor canvas position of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one vertex of an effect graph. Exactly one payload field is
// populated, matching Type; a node whose payload failed to decode executes
// as a no-op per the data-shape error policy.
type Node struct {
	ID       string
	Type     NodeType
	Position Position

	Trigger   *TriggerData
	Action    *ActionData
	Condition *ConditionData
	Target    *TargetData
	Variable  *VariableData
	Loop      *LoopData
}

type nodeWire struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the editor's discriminated node format, selecting
// the payload struct from the node type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var wire nodeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	n.ID = wire.ID
	n.Type = wire.Type
	n.Position = wire.Position

	if len(wire.Data) == 0 {
		return nil
	}
	switch wire.Type {
	case NodeTrigger:
		n.Trigger = &TriggerData{}
		return json.Unmarshal(wire.Data, n.Trigger)
	case NodeAction:
		n.Action = &ActionData{}
		return json.Unmarshal(wire.Data, n.Action)
	case NodeCondition:
		n.Condition = &ConditionData{}
		return json.Unmarshal(wire.Data, n.Condition)
	case NodeTarget:
		n.Target = &TargetData{}
		return json.Unmarshal(wire.Data, n.Target)
	case NodeVariable:
		n.Variable = &VariableData{}
		return json.Unmarshal(wire.Data, n.Variable)
	case NodeLoop:
		n.Loop = &LoopData{}
		return json.Unmarshal(wire.Data, n.Loop)
	}
	// Unknown node types are carried without a payload and execute as
	// no-ops.
	return nil
}

// MarshalJSON emits the editor's node format.
func (n Node) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch {
	case n.Trigger != nil:
		payload = n.Trigger
	case n.Action != nil:
		payload = n.Action
	case n.Condition != nil:
		payload = n.Condition
	case n.Target != nil:
		payload = n.Target
	case n.Variable != nil:
		payload = n.Variable
	case n.Loop != nil:
		payload = n.Loop
	default:
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal node %s data: %w", n.ID, err)
	}
	return json.Marshal(nodeWire{ID: n.ID, Type: n.Type, Position: n.Position, Data: raw})
}

// Edge is a directed connection between two nodes, optionally tagged with
// a named output handle ("true"/"false" for conditions, "body"/"next" for
// loops). An empty SourceHandle means the default output.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
	Type         string `json:"type,omitempty"`
}

// Viewport is editor camera state, carried for round-tripping only.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Flow is one effect graph. Exactly one trigger node should act as entry;
// a flow without one is a no-op.
type Flow struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// TriggerNode returns the flow's entry node, or nil when absent.
func (f *Flow) TriggerNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTrigger {
			return &f.Nodes[i]
		}
	}
	return nil
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}
