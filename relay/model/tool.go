package model

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"
)

// Tool is a function tool definition in requests and a tool call in responses.
// Index identifies which call a streaming delta belongs to.
type Tool struct {
	Id       string    `json:"id,omitempty"`
	Type     string    `json:"type,omitempty"`
	Function *Function `json:"function,omitempty"`
	Index    *int      `json:"index,omitempty"`
}

type Function struct {
	Description string `json:"description,omitempty"`
	Name        string `json:"name,omitempty"`
	// Parameters is the JSON-schema object describing arguments in requests.
	Parameters any `json:"parameters,omitempty"`
	// Arguments carries the call arguments in responses. Providers send a JSON
	// string; streaming deltas append fragments to it.
	Arguments any `json:"arguments,omitempty"`
}

// ArgumentsString returns the arguments as a JSON string regardless of how the
// provider encoded them.
func (f *Function) ArgumentsString() string {
	switch v := f.Arguments.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// Validate checks the shape of a function tool definition.
func (t *Tool) Validate() error {
	if t.Type != "" && t.Type != "function" {
		return errors.Errorf("unsupported tool type %q", t.Type)
	}
	if t.Function == nil {
		return errors.New("function tool requires function definition")
	}
	if t.Function.Name == "" {
		return errors.New("function name is required")
	}
	return nil
}
