package api

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ID identifies an entity inside an execution plan. Plan documents carry ids
// either as JSON numbers or as strings; both decode to the same ID.
type ID string

// Direction tells whether a param feeds a keyword or is produced by it.
type Direction string

// RunMode controls how a flow reacts to a failing step.
type RunMode string

const (
	DirectionInput  Direction = "INPUT"
	DirectionOutput Direction = "OUTPUT"

	// RunModeDefault stops the flow at the first failing step.
	RunModeDefault RunMode = "default"
	// RunModeContinueOnError keeps executing steps after a failure.
	RunModeContinueOnError RunMode = "continueOnError"
)

// ExecutionPlan is the declarative document a controller (or a local plan
// file) hands to the engine.
type ExecutionPlan struct {
	Version          int               `json:"version" yaml:"version"`
	Name             string            `json:"name" yaml:"name"`
	RunID            ID                `json:"runId" yaml:"runId"`
	KeywordInstances []KeywordInstance `json:"keywordInstances" yaml:"keywordInstances"`
	Flows            []Flow            `json:"flows" yaml:"flows"`
}

// KeywordInstance binds a registered keyword to concrete params.
type KeywordInstance struct {
	ID          ID      `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	KeywordName string  `json:"keywordName" yaml:"keywordName"`
	KeywordID   ID      `json:"keywordId,omitempty" yaml:"keywordId"`
	Params      []Param `json:"params" yaml:"params"`
}

// Param is a single named input or output slot of a KeywordInstance.
type Param struct {
	ID          ID        `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Type        string    `json:"type,omitempty" yaml:"type"`
	IsMandatory bool      `json:"isMandatory" yaml:"isMandatory"`
	Value       Text      `json:"value" yaml:"value"`
}

// Step places a KeywordInstance inside a flow.
type Step struct {
	ID            ID  `json:"id" yaml:"id"`
	InstanceID    ID  `json:"instanceId" yaml:"instanceId"`
	SequenceOrder int `json:"sequenceOrder" yaml:"sequenceOrder"`
}

// Connection wires an output param of an earlier step into an input param of
// a later step in the same flow.
type Connection struct {
	ID          ID `json:"id" yaml:"id"`
	FromStepID  ID `json:"fromStepId" yaml:"fromStepId"`
	ToStepID    ID `json:"toStepId" yaml:"toStepId"`
	FromParamID ID `json:"fromParamId" yaml:"fromParamId"`
	ToParamID   ID `json:"toParamId" yaml:"toParamId"`
}

// Flow is an ordered list of steps plus the data connections between them.
type Flow struct {
	ID            ID           `json:"id" yaml:"id"`
	FlowID        ID           `json:"flowId" yaml:"flowId"`
	SequenceOrder int          `json:"sequenceOrder" yaml:"sequenceOrder"`
	RunMode       RunMode      `json:"runMode" yaml:"runMode"`
	Name          string       `json:"name" yaml:"name"`
	Description   string       `json:"description,omitempty" yaml:"description"`
	Steps         []Step       `json:"steps" yaml:"steps"`
	Connections   []Connection `json:"connections" yaml:"connections"`
}

// ResultID returns the id reported for this flow in a FlowResult. Plans that
// omit flowId fall back to the flow's own id.
func (f Flow) ResultID() ID {
	if f.FlowID != "" {
		return f.FlowID
	}
	return f.ID
}

// EffectiveRunMode maps an empty runMode to RunModeDefault.
func (f Flow) EffectiveRunMode() RunMode {
	if f.RunMode == "" {
		return RunModeDefault
	}
	return f.RunMode
}

// Less orders integer ids before all other ids. Integers compare by value,
// everything else compares as text.
func (id ID) Less(other ID) bool {
	a, aErr := strconv.ParseInt(string(id), 10, 64)
	b, bErr := strconv.ParseInt(string(other), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return id < other
}

func (id ID) String() string { return string(id) }

// isCanonicalInt reports whether id round-trips through strconv unchanged,
// which is the case for ids that arrived as JSON integers.
func (id ID) isCanonicalInt() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.Null:
		*id = ""
	case gjson.String, gjson.Number:
		*id = ID(r.String())
	default:
		return fmt.Errorf("invalid id %s", data)
	}
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.isCanonicalInt() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid id at line %d", node.Line)
	}
	if node.Tag == "!!null" {
		*id = ""
		return nil
	}
	*id = ID(node.Value)
	return nil
}

func (id ID) MarshalYAML() (any, error) {
	if id.isCanonicalInt() {
		n, _ := strconv.ParseInt(string(id), 10, 64)
		return n, nil
	}
	return string(id), nil
}

// Text is an optional, opaque text value. JSON scalars of any type decode to
// their textual form; null decodes to an unset Text.
type Text struct {
	Value string
	Set   bool
}

// NewText returns a set Text holding v.
func NewText(v string) Text {
	return Text{Value: v, Set: true}
}

// Present reports whether t carries a usable literal. Empty strings count as
// absent because plan editors emit "" for params the user left blank.
func (t Text) Present() bool {
	return t.Set && t.Value != ""
}

func (t *Text) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	if r.Type == gjson.Null {
		*t = Text{}
		return nil
	}
	*t = NewText(r.String())
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("param value at line %d must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*t = Text{}
		return nil
	}
	*t = NewText(node.Value)
	return nil
}

func (t Text) MarshalYAML() (any, error) {
	if !t.Set {
		return nil, nil
	}
	return t.Value, nil
}
