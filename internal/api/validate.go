package api

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
)

// schemas are the request-body contracts for the JSON-bodied routes, per
// SPEC_FULL.md §6 — the teacher declares gojsonschema as a dependency but
// never wires it into a working validation path; this is that path.
var schemas = map[string]string{
	"reading": `{
		"type": "object",
		"required": ["sensorId", "flowValue"],
		"properties": {
			"networkId": {"type": "string"},
			"sensorId": {"type": "string", "minLength": 1},
			"flowValue": {"type": "number"},
			"timestamp": {"type": "string"}
		}
	}`,
	"readingsBatch": `{
		"type": "object",
		"required": ["readings"],
		"properties": {
			"networkId": {"type": "string"},
			"readings": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["sensorId", "flowValue"],
					"properties": {
						"sensorId": {"type": "string", "minLength": 1},
						"flowValue": {"type": "number"}
					}
				}
			}
		}
	}`,
	"detect": `{
		"type": "object",
		"properties": {
			"networkId": {"type": "string"},
			"timestamp": {"type": "string"},
			"threshold": {"type": "number"},
			"timeWindow": {"type": "number"},
			"nodeId": {"type": "string"},
			"partitionId": {"type": "string"}
		}
	}`,
	"localize": `{
		"type": "object",
		"properties": {
			"detectionId": {"type": "string"},
			"detectionIds": {"type": "array", "items": {"type": "string"}},
			"baselineTimeWindow": {"type": "number"}
		}
	}`,
	"analyze": `{
		"type": "object",
		"required": ["timestamp", "readings"],
		"properties": {
			"networkId": {"type": "string"},
			"timestamp": {"type": "string"},
			"readings": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["sensorId", "flowValue"],
					"properties": {
						"sensorId": {"type": "string", "minLength": 1},
						"flowValue": {"type": "number"}
					}
				}
			}
		}
	}`,
	"autoPlace": `{
		"type": "object",
		"required": ["networkId"],
		"properties": {
			"networkId": {"type": "string", "minLength": 1},
			"targetCount": {"type": "integer", "minimum": 1, "maximum": 1000}
		}
	}`,
}

// ValidateBody reads c's JSON body, validates it against the named schema,
// and returns the raw bytes for the caller to unmarshal on success. Writes
// a 400 InvalidInput response and returns ok=false on any failure.
func ValidateBody(c *gin.Context, schemaName string) (body []byte, ok bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondValidationError(c, "failed to read request body")
		return nil, false
	}

	schemaLoader := gojsonschema.NewStringLoader(schemas[schemaName])
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		RespondValidationError(c, "malformed request body: "+err.Error())
		return nil, false
	}
	if !result.Valid() {
		msg := "request body failed validation:"
		for _, e := range result.Errors() {
			msg += " " + e.String() + ";"
		}
		RespondValidationError(c, msg)
		return nil, false
	}
	return raw, true
}
