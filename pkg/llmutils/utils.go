// Package llmutils holds helpers for exchanging JSON with a language-model
// orchestrator, which may wrap arguments in prose or markdown fences.
package llmutils

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// CleanJSON returns the JSON object or array found in bs, dropping any
// prose or markdown fence around it, like `Here you go: {json}`.
func CleanJSON(bs []byte) []byte {
	trimmedPrefix := trimPrefixBeforeJSON(bs)
	trimmedJSON := trimPostfixAfterJSON(trimmedPrefix)
	return trimmedJSON
}

// Removes any prefixes before the JSON (like "Sure, here you go:")
func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	if startObject == -1 && startArray == -1 {
		return bs
	} else if startObject == -1 {
		start = startArray
	} else if startArray == -1 {
		start = startObject
	} else {
		start = min(startObject, startArray)
	}

	return bs[start:]
}

// Removes any postfixes after the JSON
func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	if endObject == -1 && endArray == -1 {
		return bs
	} else if endObject == -1 {
		end = endArray
	} else if endArray == -1 {
		end = endObject
	} else {
		end = max(endObject, endArray)
	}

	return bs[:end+1]
}

// DecodeArgs decodes tool arguments into v.
// Blank input leaves v untouched, so every argument takes its zero value.
func DecodeArgs(input string, v any) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if err := json.Unmarshal(CleanJSON([]byte(input)), v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// ToJSON encodes val, ignoring errors.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// BackticksJSON wraps js in a json markdown fence.
func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

// Truthy reports whether a loosely typed JSON value counts as set:
// non-zero numbers, non-empty strings, true, and non-empty arrays or objects.
func Truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		found := false
		r.ForEach(func(_, _ gjson.Result) bool {
			found = true
			return false
		})
		return found
	default:
		return false
	}
}
