// Package callbacks provides tools.Callback implementations to observe tool
// invocations: printing, logging, metrics and fan-out.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/pkg/metricskey"
	"github.com/tmoody1973/tribe-ai/tools"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ tools.Callback = (*Noop)(nil)
	_ tools.Callback = (*Printer)(nil)
	_ tools.Callback = (*PackageLogger)(nil)
	_ tools.Callback = (*Metrics)(nil)
	_ tools.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []tools.Callback
}

func NewFanout(callbacks ...tools.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback tools.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, tool)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string)              {}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error)   {}
func (l *Noop) OnToolNotFound(ctx context.Context, tool string)                              {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if kind := failureKind(output); kind != "" {
		fmt.Fprintf(l.Out, "Tool End: %s (%s)\n", tool.Name(), kind)
	} else {
		fmt.Fprintf(l.Out, "Tool End: %s\n", tool.Name())
	}
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	if kind := failureKind(output); kind != "" {
		l.logger.ContextKV(ctx, xlog.NOTICE,
			"event", "tool_end",
			"tool", tool.Name(),
			"kind", kind,
			"message", gjson.Get(output, "message").String(),
		)
		return
	}
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"tool", tool,
	)
}

// Metrics counts tool outcomes.
type Metrics struct{}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (l *Metrics) OnToolStart(ctx context.Context, tool tools.ITool, input string) {}

func (l *Metrics) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	if kind := failureKind(output); kind != "" {
		metricskey.StatsToolCallsFailed.IncrCounter(1, tool.Name(), kind)
		return
	}
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, tool.Name())
}

func (l *Metrics) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	metricskey.StatsToolCallsFailed.IncrCounter(1, tool.Name(), "error")
}

func (l *Metrics) OnToolNotFound(ctx context.Context, tool string) {
	metricskey.StatsToolCallsNotFound.IncrCounter(1, tool)
}

// failureKind returns the kind of an encoded failure result, or empty.
func failureKind(output string) string {
	if gjson.Get(output, "error").Bool() {
		return gjson.Get(output, "kind").String()
	}
	return ""
}
