package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pairSchema = `{
	"type": "object",
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"jobId": {"type": "string", "minLength": 1},
		"tags": {"type": "array", "items": {"type": "string"}, "uniqueItems": true}
	},
	"required": ["candidateId", "jobId"]
}`

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	assert.Panics(t, func() { MustCompile("broken", `{`) })
}

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile("pair", pairSchema)
	assert.Equal(t, "pair", s.Name())

	tests := []struct {
		name      string
		document  string
		wantValid bool
		wantCode  string
		wantField string
	}{
		{name: "valid", document: `{"candidateId":"c1","jobId":"j1","other":true}`, wantValid: true},
		{name: "missing job", document: `{"candidateId":"c1"}`, wantCode: "REQUIRED_FIELD_MISSING", wantField: "(root)"},
		{name: "empty candidate", document: `{"candidateId":"","jobId":"j1"}`, wantCode: "INVALID_LENGTH", wantField: "candidateId"},
		{name: "wrong type", document: `{"candidateId":7,"jobId":"j1"}`, wantCode: "INVALID_TYPE", wantField: "candidateId"},
		{name: "duplicate tags", document: `{"candidateId":"c1","jobId":"j1","tags":["a","a"]}`, wantCode: "DUPLICATE_ITEMS", wantField: "tags"},
		{name: "malformed json", document: `{"candidateId":`, wantCode: "INVALID_JSON", wantField: "(root)"},
		{name: "empty document", document: "", wantCode: "REQUIRED_FIELD_MISSING", wantField: "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateJSON(tt.document)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.False(t, res.HasErrors())
				return
			}
			require.True(t, res.HasErrors())
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			assert.Equal(t, tt.wantField, res.Errors[0].Field)
			assert.NotEmpty(t, res.String())
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	s := MustCompile("pair", pairSchema)

	res := s.Validate(map[string]interface{}{"candidateId": "c1", "jobId": "j1"})
	assert.True(t, res.Valid)

	res = s.Validate(map[string]interface{}{"candidateId": "c1"})
	assert.False(t, res.Valid)
	assert.Len(t, res.GetErrorMessages(), 1)
}
