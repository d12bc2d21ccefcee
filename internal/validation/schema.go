// Package validation checks promptloom artifacts against JSON Schemas:
// call-log documents and run metadata against the embedded schemas, and
// user context files against a caller-supplied schema.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/promptloom/promptloom/schemas"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// callRecordSchema is the compiled JSON Schema for call-log files.
var callRecordSchema *jsonschema.Schema

// runMetadataSchema is the compiled JSON Schema for metadata.yaml files.
var runMetadataSchema *jsonschema.Schema

func init() {
	callRecordSchema = mustCompileSchema(schemas.CallRecordSchemaJSON, "callrecord.schema.json")
	runMetadataSchema = mustCompileSchema(schemas.RunMetadataSchemaJSON, "runmetadata.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateCallLogFile validates one call-log YAML file. The returned
// slice is empty when the document conforms.
func ValidateCallLogFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading call log: %w", err)
	}
	return ValidateCallLogBytes(data), nil
}

// ValidateCallLogBytes validates raw YAML bytes against the call-record
// schema.
func ValidateCallLogBytes(data []byte) []string {
	return validateYAMLBytes(callRecordSchema, data)
}

// ValidateRunMetadataBytes validates raw YAML bytes against the run
// metadata schema.
func ValidateRunMetadataBytes(data []byte) []string {
	return validateYAMLBytes(runMetadataSchema, data)
}

// ValidateContextFile validates a YAML context file against a
// user-supplied JSON Schema document (itself YAML or JSON).
func ValidateContextFile(contextPath, schemaPath string) ([]string, error) {
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	var schemaDoc any
	if err := yaml.Unmarshal(schemaData, &schemaDoc); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, convertToJSONCompatible(schemaDoc)); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	sch, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	data, err := os.ReadFile(contextPath)
	if err != nil {
		return nil, fmt.Errorf("reading context: %w", err)
	}
	return validateYAMLBytes(sch, data), nil
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	return validateAgainstSchema(schema, convertToJSONCompatible(yamlDoc))
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible converts YAML-decoded values to
// JSON-compatible types. yaml.v3 decodes unquoted ISO-8601 scalars to
// time.Time, which has no JSON Schema equivalent, so timestamps are
// rendered back to strings.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	case time.Time:
		return val.Format("2006-01-02T15:04:05.000000-07:00")
	default:
		return val
	}
}
