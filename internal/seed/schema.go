// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package seed

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the generated manifest schema.
const SchemaID = "https://talentdesk.dev/schemas/seed.schema.json"

var compiled = sync.OnceValues(compileSchema)

// GenerateSchema reflects the JSON Schema of Manifest.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Manifest{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Back-office seed manifest"
	schema.Description = "Services, role permissions and bootstrap accounts loaded by `backoffice seed`"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

func compileSchema() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource(SchemaID, doc); err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrap(err)
	}
	sch, err := c.Compile(SchemaID)
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_FAILED").Wrap(err)
	}
	return sch, nil
}

// ValidateSchema checks YAML data against the manifest schema.
func ValidateSchema(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return oops.Code("SEED_EMPTY").Errorf("manifest is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("SEED_INVALID_YAML").Wrap(err)
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("SEED_INVALID_YAML").Wrap(err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return oops.Code("SEED_INVALID_YAML").Wrap(err)
	}

	sch, err := compiled()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("SEED_SCHEMA_VIOLATION").Errorf("%s", FormatSchemaError(err))
	}
	return nil
}

// FormatSchemaError flattens a validation error to one line.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
