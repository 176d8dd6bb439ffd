// Package toolset is the registry the orchestrator dispatches tool calls
// through. Names are matched case-insensitively. Every call is observed by
// the configured callbacks and gets an invocation ID.
package toolset

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/tmoody1973/tribe-ai/callbacks"
	"github.com/tmoody1973/tribe-ai/chatmodel"
	"github.com/tmoody1973/tribe-ai/pkg/metricskey"
	"github.com/tmoody1973/tribe-ai/tools"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai", "toolset")

// ErrToolNotFound is returned by Call for an unknown tool name.
var ErrToolNotFound = errors.New("tool not found")

// Toolset holds the registered tools.
type Toolset struct {
	tools    []tools.ITool
	byName   map[string]tools.ITool
	names    []string
	callback *callbacks.Fanout
	closers  []func() error
}

// New returns a Toolset with the given tools and the get_agent_info tool.
// A later tool replaces an earlier one with the same name.
func New(list ...tools.ITool) *Toolset {
	s := &Toolset{
		byName: map[string]tools.ITool{},
		callback: callbacks.NewFanout(
			callbacks.NewMetrics(),
			callbacks.NewPackageLogger(logger),
		),
	}
	for _, t := range list {
		s.Register(t)
	}
	s.Register(newInfoTool(s))
	return s
}

// Register adds a tool.
func (s *Toolset) Register(tool tools.ITool) {
	key := strings.ToLower(tool.Name())
	if _, ok := s.byName[key]; ok {
		for i, t := range s.tools {
			if strings.EqualFold(t.Name(), key) {
				s.tools = append(s.tools[:i], s.tools[i+1:]...)
				break
			}
		}
	}
	s.byName[key] = tool
	s.tools = append(s.tools, tool)

	s.names = s.names[:0]
	for _, t := range s.tools {
		s.names = append(s.names, t.Name())
	}
	sort.Strings(s.names)
}

// WithCallback adds a callback observing every call.
func (s *Toolset) WithCallback(cb tools.Callback) *Toolset {
	s.callback.Add(cb)
	return s
}

// Tools returns the registered tools in registration order.
func (s *Toolset) Tools() []tools.ITool {
	return s.tools
}

// Names returns the sorted tool names.
func (s *Toolset) Names() []string {
	return s.names
}

// Get returns the tool by name, or nil.
func (s *Toolset) Get(name string) tools.ITool {
	return s.byName[strings.ToLower(strings.TrimSpace(name))]
}

// Descriptions returns the tools description for a prompt.
func (s *Toolset) Descriptions() string {
	return tools.GetDescriptions(s.tools...)
}

// Call invokes the named tool with JSON arguments and returns the JSON
// encoded result. Domain failures are encoded in the result.
func (s *Toolset) Call(ctx context.Context, name, input string) (string, error) {
	tool := s.Get(name)
	if tool == nil {
		s.callback.OnToolNotFound(ctx, name)
		available := strings.Join(s.names, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"tool_name", name,
			"available_tools", available,
		)
		return "", errors.Wrapf(ErrToolNotFound,
			"Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", name, available)
	}

	if chatmodel.GetInvocationID(ctx) == "" {
		ctx = chatmodel.WithInvocationID(ctx, chatmodel.NewInvocationID())
	}
	s.callback.OnToolStart(ctx, tool, input)

	started := time.Now()
	res, err := tool.Call(ctx, input)
	metricskey.PerfToolCall.MeasureSince(started, tool.Name())

	if err != nil {
		s.callback.OnToolError(ctx, tool, input, err)
		return "", errors.WithMessagef(err, "failed to call tool %s", tool.Name())
	}

	s.callback.OnToolEnd(ctx, tool, input, res)
	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", tool.Name(),
		"invocation", chatmodel.GetInvocationID(ctx),
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}

// Close releases resources held by the tools, such as the quota store.
func (s *Toolset) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.KV(xlog.ERROR, "reason", "close", "err", err.Error())
			if first == nil {
				first = errors.WithStack(err)
			}
		}
	}
	s.closers = nil
	return first
}
