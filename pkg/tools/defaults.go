package tools

// BuildDefaultRegistry returns a registry with the seven standard tools
// registered. The read and edit tools share the registry itself: reads
// record file mtimes there, and edits are refused without a prior,
// still-current read.
func BuildDefaultRegistry(workspaceRoot string) *Registry {
	registry := NewRegistry()
	registry.Register(NewWebFetchTool())
	registry.Register(NewShellTool(workspaceRoot))
	registry.Register(NewFileReadTool(workspaceRoot, registry))
	registry.Register(NewHashlineEditTool(workspaceRoot, registry))
	registry.Register(NewFileWriteTool(workspaceRoot))
	registry.Register(NewGlobTool(workspaceRoot))
	registry.Register(NewGrepTool(workspaceRoot))
	return registry
}
