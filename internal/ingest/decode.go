package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/wjkennedy/cjm/internal/journey"
)

//go:embed schema.cue
var batchSchemaSrc string

// Format is the encoding of a batch document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a Format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported batch file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// DecodeFile reads and decodes a batch file; the format follows the extension.
func DecodeFile(path string) (journey.Batch, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return journey.Batch{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return journey.Batch{}, fmt.Errorf("read batch file: %w", err)
	}
	return Decode(data, format)
}

// Decode parses a batch document, checks it against the batch schema and
// returns the typed batch. Syntax and shape errors are
// journey.ErrCodeMalformedBatch errors.
func Decode(data []byte, format Format) (journey.Batch, error) {
	var doc any
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return journey.Batch{}, fmt.Errorf("unsupported batch format %q", format)
	}
	if err != nil {
		return journey.Batch{}, malformed(fmt.Sprintf("invalid %s document", format), err)
	}

	if err := checkSchema(doc); err != nil {
		return journey.Batch{}, err
	}

	var batch journey.Batch
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&batch)
	case FormatYAML:
		err = yaml.Unmarshal(data, &batch)
	}
	if err != nil {
		return journey.Batch{}, malformed("decode batch", err)
	}
	return batch, nil
}

// checkSchema unifies doc with #Batch. A fresh cue.Context per call keeps
// Decode safe for concurrent use.
func checkSchema(doc any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(batchSchemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile batch schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Batch"))

	val := ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return malformed("encode batch document", err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		e := journey.NewMalformedBatch("", strings.TrimSpace(cueerrors.Details(err, nil)))
		e.Err = err
		return e
	}
	return nil
}

func malformed(message string, err error) error {
	e := journey.NewMalformedBatch("", message)
	e.Err = err
	return e
}
