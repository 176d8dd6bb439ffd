package yaml

import (
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Encoder struct {
	validate *validator.Validate
}

func NewEncoder() *Encoder {
	return &Encoder{validate: validator.New()}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return yaml.Unmarshal(bs, ret)
}

func (e *Encoder) Validate(v any) error {
	return e.validate.Struct(v)
}
