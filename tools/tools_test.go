package tools_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmoody1973/tribe-ai/tools"
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResult struct {
	Text string `json:"text"`
}

type echoTool struct {
	name string
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "Echo tool.\nReturns the input." }
func (e *echoTool) Parameters() any     { return nil }

func (e *echoTool) Run(_ context.Context, req *echoRequest) (*tools.Result[echoResult], error) {
	switch req.Text {
	case "":
		return tools.Fail[echoResult](tools.KindInvalidInput, "text is required"), nil
	case "boom":
		return nil, errors.New("boom")
	}
	return tools.OK(&echoResult{Text: req.Text}), nil
}

func (e *echoTool) Call(ctx context.Context, input string) (string, error) {
	return tools.Invoke(ctx, input, e.Run)
}

var _ tools.Tool[echoRequest, echoResult] = (*echoTool)(nil)

func TestInvoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tool := &echoTool{name: "echo"}

	res, err := tool.Call(ctx, "```json\n{\"text\":\"hi\"}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi","success":true}`, res)

	res, err = tool.Call(ctx, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":true,"kind":"InvalidInput","message":"text is required"}`, res)

	res, err = tool.Call(ctx, "{\"text\":")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":true,"kind":"InvalidInput","message":"failed to unmarshal input: check the schema and try again"}`, res)

	_, err = tool.Call(ctx, `{"text":"boom"}`)
	assert.EqualError(t, err, "boom")
}

func TestDescriptions(t *testing.T) {
	t.Parallel()

	descr := tools.GetDescriptions(&echoTool{name: "echo1"}, &echoTool{name: "echo2"})
	exp := "\n```json" + `
{
	"Tools": [
		{
			"Name": "echo1",
			"Description": "Echo tool.\nReturns the input."
		},
		{
			"Name": "echo2",
			"Description": "Echo tool.\nReturns the input."
		}
	]
}
` + "```\n"
	assert.Equal(t, exp, descr)
}
