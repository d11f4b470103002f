package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/testutil"
)

const endToEndBatchYAML = `
version: "1.0"
customers:
  - customer_id: C1
    journey:
      - step_id: s1
        step_name: Inquiry
        timestamp: "2024-01-01T00:00:00"
        contact_method: email
        lead_time: 24
        handoff_to: s2
      - step_id: s2
        step_name: Quote
        timestamp: "2024-01-02T00:00:00"
        contact_method: call
        handoff_to: null
`

func TestDecode_JSON(t *testing.T) {
	batch, err := Decode([]byte(testutil.EndToEndBatchJSON), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, testutil.EndToEndBatch(), batch)
}

func TestDecode_YAML(t *testing.T) {
	batch, err := Decode([]byte(endToEndBatchYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, testutil.EndToEndBatch(), batch)
}

func TestDecode_ExtraFieldsIgnored(t *testing.T) {
	doc := `{"version": "1.0", "source": "crm", "customers": [
	  {"customer_id": "C1", "segment": "smb", "journey": [
	    {"step_id": "s1", "step_name": "Inquiry", "timestamp": "2024-01-01",
	     "contact_method": "email", "channel_detail": "newsletter"}]}]}`

	batch, err := Decode([]byte(doc), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.StepCount())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"syntax error", `{"version": "1.0",`},
		{"not an object", `[1, 2, 3]`},
		{"missing version", `{"customers": []}`},
		{"empty version", `{"version": "", "customers": []}`},
		{"numeric version", `{"version": 1.0, "customers": []}`},
		{"missing customers", `{"version": "1.0"}`},
		{"customers not a list", `{"version": "1.0", "customers": {"C1": {}}}`},
		{"missing customer id", `{"version": "1.0", "customers": [{"journey": []}]}`},
		{"missing step id", `{"version": "1.0", "customers": [{"customer_id": "C1", "journey": [
			{"step_name": "Inquiry", "timestamp": "2024-01-01", "contact_method": "email"}]}]}`},
		{"lead time not a number", `{"version": "1.0", "customers": [{"customer_id": "C1", "journey": [
			{"step_id": "s1", "step_name": "Inquiry", "timestamp": "2024-01-01",
			 "contact_method": "email", "lead_time": "a day"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.True(t, journey.IsMalformedBatch(err), "got %v", err)
		})
	}
}

func TestDecode_MalformedYAML(t *testing.T) {
	_, err := Decode([]byte("version: [unterminated"), FormatYAML)
	require.Error(t, err)
	assert.True(t, journey.IsMalformedBatch(err))
}

func TestDecode_UnknownFormat(t *testing.T) {
	_, err := Decode([]byte(`{}`), Format("toml"))
	require.Error(t, err)
	assert.False(t, journey.IsMalformedBatch(err))
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"batch.json":     FormatJSON,
		"BATCH.JSON":     FormatJSON,
		"dir/batch.yaml": FormatYAML,
		"batch.yml":      FormatYAML,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("batch.csv")
	assert.Error(t, err)
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yml")
	require.NoError(t, os.WriteFile(path, []byte(endToEndBatchYAML), 0o644))

	batch, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0", batch.Version)

	_, err = DecodeFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.False(t, journey.IsMalformedBatch(err))
}
