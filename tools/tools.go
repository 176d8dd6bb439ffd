package tools

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/tmoody1973/tribe-ai/chatmodel"
	"github.com/tmoody1973/tribe-ai/pkg/llmutils"
)

//go:generate mockgen -source=tools.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// ITool is a tool for the agent orchestrator to interact with migration data sources.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// Parameters returns the JSON schema of the tool arguments.
	Parameters() any

	// Call executes the tool with the given JSON arguments and returns the
	// JSON encoded Result. Domain failures are encoded in the result; an
	// error is returned only when the result cannot be produced.
	Call(context.Context, string) (string, error)
}

type Callback interface {
	OnToolStart(context.Context, ITool, string)
	OnToolEnd(context.Context, ITool, string, string)
	OnToolError(context.Context, ITool, string, error)
	OnToolNotFound(context.Context, string)
}

// Tool is an ITool with a typed entry point.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*Result[O], error)
}

// Invoke decodes input into I, runs the tool and encodes the result.
// Malformed input yields an InvalidInput failure rather than an error.
func Invoke[I any, O any](ctx context.Context, input string, run func(context.Context, *I) (*Result[O], error)) (string, error) {
	var req I
	var res *Result[O]
	if err := llmutils.DecodeArgs(input, &req); err != nil {
		res = Fail[O](KindInvalidInput, "%s", chatmodel.ErrFailedUnmarshalInput.Error())
	} else {
		res, err = run(ctx, &req)
		if err != nil {
			return "", err
		}
	}

	js, err := json.Marshal(res)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode result")
	}
	return string(js), nil
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
