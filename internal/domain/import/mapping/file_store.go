package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// templateFileSchema constrains the YAML template document before it is decoded.
const templateFileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["templates"],
  "additionalProperties": false,
  "properties": {
    "templates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "columns"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "file_kind": {"enum": ["delimited", "spreadsheet"]},
          "fingerprint": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
          "columns": {
            "type": "object",
            "additionalProperties": false,
            "required": ["date", "merchant", "amount"],
            "properties": {
              "date": {"$ref": "#/definitions/aliases"},
              "merchant": {"$ref": "#/definitions/aliases"},
              "amount": {"$ref": "#/definitions/aliases"},
              "account": {"$ref": "#/definitions/aliases"}
            }
          },
          "negate": {"$ref": "#/definitions/aliases"},
          "date_formats": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "decimal_separator": {"enum": [".", ","]},
          "default_account": {"type": "string"}
        }
      }
    }
  },
  "definitions": {
    "aliases": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
  }
}`

var compiledTemplateSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("templates.json", bytes.NewReader([]byte(templateFileSchema))); err != nil {
		panic(fmt.Sprintf("add template schema: %v", err))
	}
	return compiler.MustCompile("templates.json")
}

type templateFile struct {
	Templates []*Template `yaml:"templates"`
}

// LoadFile reads a YAML template document from path. See ParseTemplates.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates validates a YAML document against the template schema and
// loads its templates into a MemoryStore.
//
//	templates:
//	  - name: acme-card
//	    columns:
//	      date: [Posted Date]
//	      merchant: [Payee]
//	      amount: [Debit]
//	    negate: [Debit]
func ParseTemplates(data []byte) (*MemoryStore, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	// the validator works on encoding/json shapes
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	if err := compiledTemplateSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	return NewMemoryStore(file.Templates...)
}
