package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/codial-dev/codial-core/pkg/providers"
)

// Registry is the central name→tool table shared by every turn worker.
//
// It also carries the read-before-edit state: the read tool records a
// file's mtime here after each successful read, and the edit tool refuses
// to touch a file that was never read or that changed since the last
// read. Workers run concurrently, so both maps are lock-protected.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	mtimeMu    sync.Mutex
	readMtimes map[string]time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		readMtimes: make(map[string]time.Time),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, present := r.tools[name]
	delete(r.tools, name)
	return present
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Contains reports whether a tool with the given name is registered.
func (r *Registry) Contains(name string) bool {
	return r.Get(name) != nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ListNames returns the names of all registered tools in no particular
// order.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// ToProviderSpecs renders every registered tool as a provider-facing
// spec, sorted by name. Built-in tools carry no title and no output
// schema.
func (r *Registry) ToProviderSpecs() []providers.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]providers.ToolSpec, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		specs = append(specs, providers.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return specs
}

// Call executes the named tool. An unregistered name and a panicking tool
// both come back as failed Results rather than propagating.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (result Result) {
	tool := r.Get(name)
	if tool == nil {
		return failure(fmt.Sprintf("등록되지 않은 도구예요: %s", name))
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result = failure(fmt.Sprintf("도구 실행 중 오류가 발생했어요: %v", recovered))
		}
	}()
	return tool.Execute(ctx, args)
}

// NotifyFileRead records the file's current mtime after a successful
// read, unlocking edits for that path. A stat failure leaves the previous
// record in place.
func (r *Registry) NotifyFileRead(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	r.mtimeMu.Lock()
	defer r.mtimeMu.Unlock()
	r.readMtimes[path] = info.ModTime()
}

// CheckFileEditAllowed returns a denial reason when the path was never
// read in this process, or when the file changed after the recorded read.
// An empty return means the edit may proceed.
func (r *Registry) CheckFileEditAllowed(path string) string {
	r.mtimeMu.Lock()
	recorded, seen := r.readMtimes[path]
	r.mtimeMu.Unlock()

	if !seen {
		return fmt.Sprintf("먼저 file_read 도구로 파일을 읽어야 해요: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if info.ModTime().After(recorded) {
		return fmt.Sprintf("file_read 이후 파일이 변경됐어요. 다시 읽은 뒤 수정해 주세요: %s", path)
	}
	return ""
}
