// Package tools defines the contract shared by the migration tools invoked by
// the agent orchestrator: the ITool interface, the callback hooks and the
// success or failure payload every tool returns.
package tools
