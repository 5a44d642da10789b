package keyword

import "slices"

// Schema is the serializable description of a keyword, consumed by plan
// editors and tooling.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Inputs      []InputSchema  `json:"inputs"`
	Outputs     []OutputSchema `json:"outputs"`
}

// InputSchema describes a keyword input.
type InputSchema struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Default     *string  `json:"default,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Description string   `json:"description,omitempty"`
}

// OutputSchema describes a keyword output.
type OutputSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TypeText is the only param type keywords expose; values are opaque text.
const TypeText = "string"

// SchemaOf builds the schema of kw.
func SchemaOf(kw *Keyword) Schema {
	s := Schema{
		Name:        kw.Name,
		Description: kw.Description,
		Inputs:      make([]InputSchema, 0, len(kw.Inputs)),
		Outputs:     make([]OutputSchema, 0, len(kw.Outputs)),
	}
	for _, in := range kw.Inputs {
		is := InputSchema{
			Name:        in.Name,
			Type:        TypeText,
			Required:    in.Required,
			Choices:     slices.Clone(in.Choices),
			Description: in.Description,
		}
		if in.HasDefault {
			def := in.Default
			is.Default = &def
		}
		s.Inputs = append(s.Inputs, is)
	}
	for _, out := range kw.Outputs {
		s.Outputs = append(s.Outputs, OutputSchema{
			Name:        out.Name,
			Type:        TypeText,
			Description: out.Description,
		})
	}
	return s
}
