package models

// Condition is one node of a classification rule. A node is either a leaf
// (Field, Op, Value) or a group (And / Or).
type Condition struct {
	Field string      `json:"field,omitempty" yaml:"field,omitempty"`
	Op    string      `json:"op,omitempty" yaml:"op,omitempty"`
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	And   []Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Or    []Condition `json:"or,omitempty" yaml:"or,omitempty"`
}
