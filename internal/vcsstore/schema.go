package vcsstore

import (
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// schemaSet holds the compiled validation schema for each record type,
// generated once from the core structs themselves so the schema can never
// drift out of sync with the Go types it validates.
type schemaSet struct {
	workflow *jsonschema.Schema
	task     *jsonschema.Schema
	agent    *jsonschema.Schema
}

func newSchemaSet() (*schemaSet, error) {
	workflow, err := compileSchema("zen://schema/workflow.json", &core.Workflow{})
	if err != nil {
		return nil, err
	}
	task, err := compileSchema("zen://schema/task.json", &core.Task{})
	if err != nil {
		return nil, err
	}
	agent, err := compileSchema("zen://schema/agent.json", &core.Agent{})
	if err != nil {
		return nil, err
	}
	return &schemaSet{workflow: workflow, task: task, agent: agent}, nil
}

// compileSchema reflects a JSON schema off v's Go type and compiles it
// through santhosh-tekuri/jsonschema, which does the actual validation at
// load time.
func compileSchema(id string, v interface{}) (*jsonschema.Schema, error) {
	reflector := &invopop.Reflector{ExpandedStruct: true, DoNotReference: true}
	raw := reflector.Reflect(v)
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("reflect schema %s: %w", id, err)
	}
	var doc interface{}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("decode reflected schema %s: %w", id, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", id, err)
	}
	schema, err := compiler.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", id, err)
	}
	return schema, nil
}

// validate checks raw JSON against schema, reporting a core.ErrStore wrapping
// the first validation failure so callers can treat it like any other
// store-read corruption.
func validateRecord(schema *jsonschema.Schema, kind string, raw []byte) error {
	var instance interface{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, fmt.Sprintf("%s record is not valid JSON", kind)).WithCause(err)
	}
	if err := schema.Validate(instance); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, fmt.Sprintf("%s record failed schema validation", kind)).WithCause(err)
	}
	return nil
}
