// Package schemas embeds the JSON Schemas shipped with promptloom.
package schemas

import _ "embed"

// CallRecordSchemaJSON is the JSON Schema for call-log YAML documents.
//
//go:embed callrecord.schema.json
var CallRecordSchemaJSON string

// RunMetadataSchemaJSON is the JSON Schema for run-level metadata.yaml.
//
//go:embed runmetadata.schema.json
var RunMetadataSchemaJSON string
