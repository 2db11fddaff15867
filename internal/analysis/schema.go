package analysis

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidAnalysis marks an analysis response that failed schema
// validation. Schema violations are never retried.
var ErrInvalidAnalysis = errors.New("analysis response failed schema validation")

//go:embed analysis_schema.json
var analysisSchemaJSON []byte

var resultSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(analysisSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded analysis schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis_schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add analysis schema resource: %v", err))
	}

	schema, err := compiler.Compile("analysis_schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile analysis schema: %v", err))
	}

	return schema
}

// ParseResult validates and decodes the analysis service's JSON response.
// Every per-user entry must carry all required fields with correct types;
// anything else is ErrInvalidAnalysis.
func ParseResult(text string) (*Result, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	if err := resultSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	var users []UserAnalysis
	if err := json.Unmarshal([]byte(text), &users); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	return &Result{Users: users}, nil
}
