package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/storyviz/internal/ir"
)

// Format is a document encoding, chosen by file extension.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf maps a path's extension to a Format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("%s: unsupported extension %q (want .yaml, .yml, .json or .cue)", path, filepath.Ext(path))
	}
}

// LoadScene reads and compiles a scene document.
func LoadScene(path string) (*ir.SceneConfig, error) {
	data, format, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return DecodeScene(data, format, path)
}

// LoadStoryboard reads and compiles a storyboard document.
func LoadStoryboard(path string) (*ir.Storyboard, error) {
	data, format, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return DecodeStoryboard(data, format, path)
}

func readDocument(path string) ([]byte, Format, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

// DecodeScene compiles a scene from raw bytes. A CUE document may hold the
// scene at the top level or under a "scene" field. filename is used in
// error positions.
func DecodeScene(data []byte, format Format, filename string) (*ir.SceneConfig, error) {
	var sc ir.SceneConfig
	switch format {
	case FormatYAML:
		if err := decodeYAML(data, &sc); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	case FormatCUE:
		v, err := compileCUE(data, filename, "scene")
		if err != nil {
			return nil, err
		}
		return CompileScene(v)
	default:
		return nil, fmt.Errorf("%s: unsupported format %q", filename, format)
	}
	return &sc, nil
}

// DecodeStoryboard compiles a storyboard from raw bytes.
func DecodeStoryboard(data []byte, format Format, filename string) (*ir.Storyboard, error) {
	var sb ir.Storyboard
	switch format {
	case FormatYAML:
		if err := decodeYAML(data, &sb); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		dec.UseNumber()
		if err := dec.Decode(&sb); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	case FormatCUE:
		v, err := compileCUE(data, filename, "storyboard")
		if err != nil {
			return nil, err
		}
		return CompileStoryboard(v)
	default:
		return nil, fmt.Errorf("%s: unsupported format %q", filename, format)
	}
	sb.Normalize()
	return &sb, nil
}

func decodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	return nil
}

func compileCUE(data []byte, filename, field string) (cue.Value, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	if f := v.LookupPath(cue.ParsePath(field)); f.Exists() {
		return f, nil
	}
	return v, nil
}
