package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/engine"
	"github.com/hpungsan/cipherbox/internal/errors"
	"github.com/hpungsan/cipherbox/internal/logging"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	engine *engine.Engine
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{engine: eng, cfg: cfg, logger: logging.OrNop(logger)}
}

// Request types for each tool

// EncodeRequest represents the arguments for cipher_encode.
type EncodeRequest struct {
	Module     string `json:"module"`
	Text       string `json:"text"`
	IgnoreCase bool   `json:"ignore_case,omitempty"`
}

// DecodeRequest represents the arguments for cipher_decode.
type DecodeRequest struct {
	Module string `json:"module"`
	DetectRequest
}

// DetectRequest represents the arguments for cipher_detect.
type DetectRequest struct {
	Text              string `json:"text"`
	Lenient           bool   `json:"lenient,omitempty"`
	RequireDictionary bool   `json:"require_dictionary,omitempty"`
	MaxCandidates     int    `json:"max_candidates,omitempty"`
}

func (r DetectRequest) options() (engine.Options, error) {
	if r.MaxCandidates < 0 {
		return engine.Options{}, errors.NewInvalidRequest("max_candidates must not be negative")
	}
	return engine.Options{
		RequirePerfect:    !r.Lenient,
		RequireDictionary: r.RequireDictionary,
		Limits:            cipher.Limits{MaxCandidates: r.MaxCandidates},
	}, nil
}

// ModuleFetchRequest represents the arguments for module_fetch.
type ModuleFetchRequest struct {
	Name string `json:"name"`
}

// ModuleInfo summarizes a loaded module in module_list.
type ModuleInfo struct {
	Name             string `json:"name"`
	Keys             int    `json:"keys"`
	ReverseDirection bool   `json:"reverse_direction,omitempty"`
	Description      string `json:"description,omitempty"`
}

// ModuleListOutput is the module_list result.
type ModuleListOutput struct {
	Items      []ModuleInfo `json:"items"`
	Dictionary int          `json:"dictionary_words"`
}

// bindArgs copies the tool arguments into a typed request.
func bindArgs[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	raw, err := json.Marshal(req.GetArguments())
	if err == nil {
		err = json.Unmarshal(raw, &input)
	}
	if err != nil {
		return input, errors.NewInvalidRequest("invalid arguments: " + err.Error())
	}
	return input, nil
}

// Handler implementations

// HandleEncode handles the cipher_encode tool call.
func (h *Handlers) HandleEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[EncodeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Module) == "" {
		return errorResult(errors.NewInvalidRequest("module is required")), nil
	}

	result, err := h.engine.Encode(input.Module, input.Text, input.IgnoreCase)
	if err != nil {
		return h.fail("cipher_encode", err), nil
	}
	return successResult(result)
}

// HandleDecode handles the cipher_decode tool call.
func (h *Handlers) HandleDecode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[DecodeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Module) == "" {
		return errorResult(errors.NewInvalidRequest("module is required; use cipher_detect to try every module")), nil
	}
	opts, err := input.options()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.engine.Decode(ctx, input.Module, input.Text, opts)
	if err != nil {
		return h.fail("cipher_decode", err), nil
	}
	return successResult(result)
}

// HandleDetect handles the cipher_detect tool call.
func (h *Handlers) HandleDetect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[DetectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	opts, err := input.options()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.engine.Detect(ctx, input.Text, opts)
	if err != nil {
		return h.fail("cipher_detect", err), nil
	}
	return successResult(result)
}

// HandleModuleList handles the module_list tool call.
func (h *Handlers) HandleModuleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := ModuleListOutput{
		Items:      make([]ModuleInfo, 0, h.engine.Registry().Len()),
		Dictionary: h.engine.Dictionary().Len(),
	}
	for _, m := range h.engine.Registry().Modules() {
		out.Items = append(out.Items, ModuleInfo{
			Name:             m.Name,
			Keys:             m.Mapping.Len(),
			ReverseDirection: m.Settings.ReverseDirection,
			Description:      m.Description,
		})
	}
	return successResult(out)
}

// HandleModuleFetch handles the module_fetch tool call.
func (h *Handlers) HandleModuleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[ModuleFetchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Name) == "" {
		return errorResult(errors.NewInvalidRequest("name is required")), nil
	}

	m, ok := h.engine.Registry().Get(input.Name)
	if !ok {
		return errorResult(errors.NewNotFound(input.Name)), nil
	}
	return successResult(m)
}

// fail converts an engine error into a tool result. Cancellation and other
// non-structured errors surface as INTERNAL.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if _, ok := err.(*errors.CipherError); !ok {
		h.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	}
	return errorResult(err)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := err.(*errors.CipherError); ok {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
