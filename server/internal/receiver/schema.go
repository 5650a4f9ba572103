package receiver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

const schemaURL = "event_batch.json"

const batchSchemaTemplate = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["events"],
  "properties": {
    "events": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/$defs/event"}
    }
  },
  "$defs": {
    "event": {
      "type": "object",
      "required": ["event", "sessionId", "occurredAt"],
      "properties": {
        "event":          {"enum": %s},
        "sessionId":      {"type": "string", "minLength": 1},
        "occurredAt":     {"type": "string", "format": "date-time"},
        "contentId":      {"type": "string"},
        "productId":      {"type": "string"},
        "matchedKeyword": {"type": "string"},
        "widgetVersion":  {"type": "string"},
        "cta":            {"type": "string"},
        "viewable":       {"type": "boolean"},
        "metadata":       {"type": "object"},
        "attribution": {
          "type": "object",
          "properties": {
            "utmSource":   {"type": "string"},
            "utmMedium":   {"type": "string"},
            "utmCampaign": {"type": "string"}
          }
        },
        "location": {
          "type": "object",
          "properties": {
            "timecodeSeconds":    {"type": "number", "minimum": 0},
            "scrollDepthPercent": {"type": "number", "minimum": 0, "maximum": 100}
          }
        }
      }
    }
  }
}`

// compileSchema builds the batch schema with the event enum taken from
// types.EventNames.
func compileSchema() (*jsonschema.Schema, error) {
	names, err := json.Marshal(types.EventNames)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(fmt.Sprintf(batchSchemaTemplate, names)))
	if err != nil {
		return nil, fmt.Errorf("receiver: parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("receiver: add schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("receiver: compile schema: %w", err)
	}
	return sch, nil
}
