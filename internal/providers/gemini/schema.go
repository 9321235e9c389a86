package gemini

// Schema mirrors the subset of the Gemini response-schema format the suite
// uses. It is plain data: callers assemble a value from user-declared fields
// and the client passes it through untouched.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// NewObjectSchema builds an object schema with the given properties, all
// required, preserving the declared order in Required.
func NewObjectSchema(properties map[string]*Schema, required []string) *Schema {
	return &Schema{Type: "object", Properties: properties, Required: required}
}

// NewArraySchema builds an array schema of the given item type.
func NewArraySchema(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}

// NewStringSchema builds a string leaf schema.
func NewStringSchema() *Schema {
	return &Schema{Type: "string"}
}
