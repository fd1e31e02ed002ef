package tools

import (
	"context"
	"encoding/json"

	"github.com/flemzord/chaingate/internal/tool"
)

const echoSchema = `{
	"type": "object",
	"properties": {
		"message": {"type": "string", "description": "Text to echo back"}
	},
	"required": ["message"],
	"additionalProperties": false
}`

// Echo returns its message. It is the gateway's connectivity check.
func Echo() tool.Descriptor {
	return tool.Descriptor{
		Name:        "echo",
		Description: "Echo a message back to the caller.",
		Permissions: []tool.Permission{tool.PermissionPublic},
		Schema:      json.RawMessage(echoSchema),
		Action: func(_ context.Context, p tool.Params, _ tool.Context) (any, error) {
			return map[string]any{"echoed": p["message"]}, nil
		},
	}
}

const setRPCSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "New JSON-RPC endpoint"}
	},
	"required": ["url"]
}`

// AdminSetRPC is declared for discovery but requires the admin permission,
// which no caller can hold. Every call is denied before the action runs.
func AdminSetRPC() tool.Descriptor {
	return tool.Descriptor{
		Name:        "admin_set_rpc",
		Description: "Switch the cluster RPC endpoint (admin only).",
		Permissions: []tool.Permission{tool.PermissionAdmin},
		Schema:      json.RawMessage(setRPCSchema),
		Action: func(context.Context, tool.Params, tool.Context) (any, error) {
			return nil, tool.Errorf(tool.CodePermissionDenied, "admin tools are not available")
		},
	}
}
