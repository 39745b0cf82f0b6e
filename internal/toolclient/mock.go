package toolclient

import "fmt"

// mockRespond stands in for the remote peer when no endpoint resolves. The
// dispatch table is closed: adding a mocked tool is a deliberate code change,
// not dynamic registration. An unknown tool name degrades to an informative
// message and is NOT an error, so local integration tests keep working
// without a live remote.
func mockRespond(tool string, args any) any {
	switch tool {
	case "echo":
		return map[string]any{"echoed": args}
	case "list_tools":
		return map[string]any{"tools": []any{"echo", "health", "list_tools"}}
	default:
		return map[string]any{
			"message": fmt.Sprintf("No remote agent configured and no mock found for tool: %s", tool),
		}
	}
}
