package toolset

import (
	"context"
	"reflect"

	"github.com/tmoody1973/tribe-ai/pkg/schema"
	"github.com/tmoody1973/tribe-ai/tools"
)

const (
	// AgentName is the name of the agent the tools serve.
	AgentName = "TRIBE"
	// Version of the tool set.
	Version = "1.0.0"
	// InfoToolName is the name of the agent info tool.
	InfoToolName = "get_agent_info"
)

// capabilities by tool name
var capabilities = map[string]string{
	"search_housing_resources": "housing_search",
	"search_live_data":         "live_search",
	"search_visa_options":      "visa_guidance",
	"get_user_context":         "task_management",
}

// Info describes the agent and its tools.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Tools        []string `json:"tools"`
}

// Info returns the agent description derived from the registered tools.
func (s *Toolset) Info() *Info {
	info := &Info{
		Name:         AgentName,
		Version:      Version,
		Capabilities: []string{},
		Tools:        append([]string{}, s.names...),
	}
	for _, t := range s.tools {
		if c, ok := capabilities[t.Name()]; ok {
			info.Capabilities = append(info.Capabilities, c)
		}
	}
	return info
}

type infoRequest struct{}

type infoTool struct {
	set *Toolset
}

var _ tools.Tool[infoRequest, Info] = (*infoTool)(nil)

func newInfoTool(set *Toolset) *infoTool {
	return &infoTool{set: set}
}

func (t *infoTool) Name() string {
	return InfoToolName
}

func (t *infoTool) Description() string {
	return "Get information about the TRIBE agent: its version, capabilities and tools."
}

func (t *infoTool) Parameters() any {
	return schema.Must(reflect.TypeOf(infoRequest{})).Parameters
}

func (t *infoTool) Call(ctx context.Context, input string) (string, error) {
	return tools.Invoke(ctx, input, t.Run)
}

func (t *infoTool) Run(_ context.Context, _ *infoRequest) (*tools.Result[Info], error) {
	return tools.OK(t.set.Info()), nil
}
