package mcp

import "github.com/mark3labs/mcp-go/mcp"

var encodeToolDef = mcp.NewTool("cipher_encode",
	mcp.WithDescription("Encode plaintext with a named cipher module. When the module allows several "+
		"separator combinations, every distinct encoding is returned."),
	mcp.WithString("module", mcp.Required(), mcp.Description("Module name, as returned by module_list")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Plaintext to encode")),
	mcp.WithBoolean("ignore_case", mcp.Description("Fold the plaintext to the module's case before encoding")),
)

var decodeToolDef = mcp.NewTool("cipher_decode",
	mcp.WithDescription("Decode ciphertext with a named cipher module. Returns every distinct candidate "+
		"plaintext; ambiguous input yields several. Candidates are ranked by dictionary words."),
	mcp.WithString("module", mcp.Required(), mcp.Description("Module name, as returned by module_list")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Ciphertext to decode")),
	mcp.WithBoolean("lenient", mcp.Description("Pass unmapped input through instead of rejecting the candidate (default: false)")),
	mcp.WithBoolean("require_dictionary", mcp.Description("Keep only candidates made entirely of dictionary words")),
	mcp.WithNumber("max_candidates", mcp.Description("Cap the number of candidates (cannot exceed the server limit)")),
)

var detectToolDef = mcp.NewTool("cipher_detect",
	mcp.WithDescription("Try every loaded cipher module on the ciphertext and return the modules "+
		"that could decode it, each with its candidates."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Ciphertext to decode")),
	mcp.WithBoolean("lenient", mcp.Description("Pass unmapped input through instead of rejecting the candidate (default: false)")),
	mcp.WithBoolean("require_dictionary", mcp.Description("Keep only candidates made entirely of dictionary words")),
	mcp.WithNumber("max_candidates", mcp.Description("Cap the candidates per module (cannot exceed the server limit)")),
)

var moduleListToolDef = mcp.NewTool("module_list",
	mcp.WithDescription("List the loaded cipher modules in auto-detect order."),
)

var moduleFetchToolDef = mcp.NewTool("module_fetch",
	mcp.WithDescription("Fetch the full definition of a loaded cipher module."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Module name")),
)
