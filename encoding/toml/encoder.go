package toml

import (
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Encoder struct {
	validate *validator.Validate
}

func NewEncoder() *Encoder {
	return &Encoder{validate: validator.New()}
}

func (e *Encoder) Marshal(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	return toml.Unmarshal(bs, ret)
}

func (e *Encoder) Validate(v any) error {
	return e.validate.Struct(v)
}
