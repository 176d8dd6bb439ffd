package json

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned by Unmarshal for a document that is not valid JSON.
var ErrMalformed = errors.New("malformed JSON document")

type Encoder struct {
	validate *validator.Validate
}

func NewEncoder() *Encoder {
	return &Encoder{validate: validator.New()}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "\t")
}

// Unmarshal decodes a complete document. Truncated or otherwise invalid
// input is rejected as a whole.
func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	if !gjson.ValidBytes(bs) {
		return errors.WithStack(ErrMalformed)
	}
	return json.Unmarshal(bs, ret)
}

func (e *Encoder) Validate(v any) error {
	return e.validate.Struct(v)
}
