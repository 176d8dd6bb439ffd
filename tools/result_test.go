package tools_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmoody1973/tribe-ai/pkg/quota"
	"github.com/tmoody1973/tribe-ai/tools"
)

type payload struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}

func TestResult_Success(t *testing.T) {
	t.Parallel()

	res := tools.OK(&payload{Answer: "yes", Sources: []string{"https://a"}, Count: 2})
	assert.True(t, res.Success())

	js, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"yes","sources":["https://a"],"count":2,"success":true}`, string(js))

	var back tools.Result[payload]
	require.NoError(t, json.Unmarshal(js, &back))
	require.True(t, back.Success())
	assert.Equal(t, res.Data, back.Data)

	// the payload decodes to plain values
	var m map[string]any
	require.NoError(t, json.Unmarshal(js, &m))
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "yes", m["answer"])

	js, err = json.Marshal(tools.OK[payload](nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(js))
}

func TestFailure_MessageVerbatim(t *testing.T) {
	t.Parallel()

	msg := "Quota at 100% (50/50) %s %d"
	res := tools.Fail[payload](tools.KindUpstreamError, "%s", msg)
	assert.Equal(t, msg, res.Failure.Message)
	assert.Equal(t, msg, tools.NewFailure(tools.KindUpstreamError, "%s", msg).Message)
	assert.Equal(t, "Search query cannot be empty.", tools.NewFailure(tools.KindInvalidInput, "Search query cannot be empty.").Message)
}

func TestResult_Failure(t *testing.T) {
	t.Parallel()

	f := tools.NewFailure(tools.KindQuotaExceeded, "quota %d/%d", 50, 50).
		WithHint("try the cached databases").
		WithQuota(quota.Status{Used: 50, Limit: 50})
	res := tools.FailWith[payload](f)
	assert.False(t, res.Success())
	assert.Equal(t, "QuotaExceeded: quota 50/50", f.Error())

	js, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error": true,
		"kind": "QuotaExceeded",
		"message": "quota 50/50",
		"hint": "try the cached databases",
		"quotaStatus": {"used": 50, "limit": 50, "remaining": 0}
	}`, string(js))

	var back tools.Result[payload]
	require.NoError(t, json.Unmarshal(js, &back))
	assert.False(t, back.Success())
	assert.Nil(t, back.Data)
	assert.Equal(t, f, back.Failure)

	js, err = json.Marshal(tools.Fail[payload](tools.KindInvalidInput, "bad").Failure.WithSuggestions("Germany (DEU)"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":true,"kind":"InvalidInput","message":"bad","suggestions":["Germany (DEU)"]}`, string(js))

	assert.Error(t, json.Unmarshal([]byte(`{`), &back))
}
