// Package encoding decodes structured documents in JSON, YAML or TOML,
// choosing the format from the file extension, and validates the result.
package encoding

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	jsonenc "github.com/tmoody1973/tribe-ai/encoding/json"
	tomlenc "github.com/tmoody1973/tribe-ai/encoding/toml"
	yamlenc "github.com/tmoody1973/tribe-ai/encoding/yaml"
)

type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal([]byte, any) error
	Validate(any) error
}

type Format = string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for an unknown format or file extension.
var ErrUnsupportedFormat = errors.New("unsupported format")

var (
	_ Encoder = (*jsonenc.Encoder)(nil)
	_ Encoder = (*tomlenc.Encoder)(nil)
	_ Encoder = (*yamlenc.Encoder)(nil)
)

// ForFormat returns the Encoder for the format.
func ForFormat(format Format) (Encoder, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return jsonenc.NewEncoder(), nil
	case FormatYAML, "yml":
		return yamlenc.NewEncoder(), nil
	case FormatTOML:
		return tomlenc.NewEncoder(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
}

// ForFile returns the Encoder matching the file extension.
func ForFile(path string) (Encoder, error) {
	return ForFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeFile reads path into v and validates v.
func DecodeFile(path string, v any) error {
	enc, err := ForFile(path)
	if err != nil {
		return err
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	return Decode(enc, bs, v)
}

// Decode unmarshals bs into v with enc, and validates v.
func Decode(enc Encoder, bs []byte, v any) error {
	if err := enc.Unmarshal(bs, v); err != nil {
		return errors.Wrap(err, "failed to decode")
	}
	if err := enc.Validate(v); err != nil {
		return errors.Wrap(err, "failed to validate")
	}
	return nil
}
