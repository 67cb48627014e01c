// Package engine is the facade over the cipher package: it owns the loaded
// module registry and dictionary, dispatches encode and decode requests,
// runs auto-detection and renders the plain-text output shown to users.
//
// An Engine is immutable after New and safe for concurrent use.
package engine

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// AutoDetect selects every loaded module when decoding.
const AutoDetect = "Auto-Detect"

// User-facing outcomes that are not errors.
const (
	MsgSelectModule   = "❌ Select a module."
	MsgUnableToDecode = "❌ Unable to decode."
	MsgNoModule       = "❌ No module could decode this input."
)

// Mode is the direction of a request.
type Mode string

const (
	ModeDecode Mode = "decode"
	ModeEncode Mode = "encode"
)

// Status classifies a result.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"        // blank input, nothing ran
	StatusNoSelection Status = "no_selection" // encode without a module
	StatusUndecodable Status = "undecodable"  // the selected module found nothing
	StatusNoModule    Status = "no_module"    // auto-detect found nothing
)

// Options are the per-request switches.
type Options struct {
	// RequirePerfect rejects decodings with unmapped input.
	RequirePerfect bool `json:"require_perfect,omitempty"`

	// RequireDictionary keeps only decodings made entirely of known words.
	RequireDictionary bool `json:"require_dictionary,omitempty"`

	// IgnoreCase folds plaintext to the module's case when encoding.
	IgnoreCase bool `json:"ignore_case,omitempty"`

	// Limits may tighten the engine's limits for this request.
	Limits cipher.Limits `json:"limits,omitempty"`
}

// Request is one engine invocation.
type Request struct {
	Mode   Mode   `json:"mode"`
	Module string `json:"module,omitempty"`
	Text   string `json:"text"`
	Options
}

// Section is the outcome of one module during auto-detection.
type Section struct {
	Module     string   `json:"module"`
	Candidates []string `json:"candidates"`
	Truncated  bool     `json:"truncated,omitempty"`
}

// Result is the outcome of Run. Output is the rendered text; the other
// fields carry the same data in structured form.
type Result struct {
	Mode       Mode             `json:"mode"`
	Module     string           `json:"module,omitempty"`
	Status     Status           `json:"status"`
	Output     string           `json:"output"`
	Variants   []cipher.Variant `json:"variants,omitempty"`
	Candidates []string         `json:"candidates,omitempty"`
	Sections   []Section        `json:"sections,omitempty"`
	Truncated  bool             `json:"truncated,omitempty"`
}

// Engine runs encode and decode requests against a fixed registry.
type Engine struct {
	registry *Registry
	dict     *cipher.Dictionary
	limits   cipher.Limits
	maxInput int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimits bounds every decode.
func WithLimits(l cipher.Limits) Option {
	return func(e *Engine) { e.limits = l }
}

// WithMaxInputChars rejects inputs longer than n runes. 0 disables the check.
func WithMaxInputChars(n int) Option {
	return func(e *Engine) { e.maxInput = n }
}

// New creates an Engine. dict may be nil, which disables ranking and the
// dictionary requirement.
func New(registry *Registry, dict *cipher.Dictionary, opts ...Option) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{registry: registry, dict: dict}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the loaded modules.
func (e *Engine) Registry() *Registry { return e.registry }

// Dictionary returns the loaded dictionary, or nil.
func (e *Engine) Dictionary() *cipher.Dictionary { return e.dict }

// Run dispatches a request. Undecodable input and a missing module
// selection are reported through Result.Status, not as errors. Errors are
// returned for an unknown mode or module name, oversized input, and
// cancellation.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	switch req.Mode {
	case ModeEncode:
		return e.Encode(req.Module, req.Text, req.IgnoreCase)
	case ModeDecode, "":
		if req.Module == "" || req.Module == AutoDetect {
			return e.Detect(ctx, req.Text, req.Options)
		}
		return e.Decode(ctx, req.Module, req.Text, req.Options)
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: encode, decode")
	}
}

// Encode encodes text with the named module.
func (e *Engine) Encode(name, text string, ignoreCase bool) (*Result, error) {
	if err := e.checkInput(text); err != nil {
		return nil, err
	}
	res := &Result{Mode: ModeEncode, Module: name}
	if strings.TrimSpace(text) == "" {
		res.Status = StatusEmpty
		return res, nil
	}
	if name == "" || name == AutoDetect {
		res.Module = ""
		res.Status = StatusNoSelection
		res.Output = MsgSelectModule
		return res, nil
	}

	m, ok := e.registry.Get(name)
	if !ok {
		return nil, errors.NewNotFound(name)
	}
	res.Variants = cipher.EncodeVariants(m, text, ignoreCase)
	res.Output = cipher.FormatVariants(res.Variants)
	res.Status = StatusOK
	return res, nil
}

// Decode decodes text with the named module.
func (e *Engine) Decode(ctx context.Context, name, text string, opts Options) (*Result, error) {
	if err := e.checkInput(text); err != nil {
		return nil, err
	}
	res := &Result{Mode: ModeDecode, Module: name}
	if strings.TrimSpace(text) == "" {
		res.Status = StatusEmpty
		return res, nil
	}

	m, ok := e.registry.Get(name)
	if !ok {
		return nil, errors.NewNotFound(name)
	}
	dr, err := e.decodeModule(ctx, m, text, opts)
	if err != nil {
		return nil, err
	}

	res.Candidates = dr.Candidates
	res.Truncated = dr.Truncated
	if len(dr.Candidates) == 0 {
		res.Status = StatusUndecodable
		res.Output = MsgUnableToDecode
		return res, nil
	}
	res.Status = StatusOK
	res.Output = strings.Join(dr.Candidates, "\n")
	return res, nil
}

// Detect decodes text with every loaded module and keeps the modules that
// produced at least one candidate.
func (e *Engine) Detect(ctx context.Context, text string, opts Options) (*Result, error) {
	if err := e.checkInput(text); err != nil {
		return nil, err
	}
	res := &Result{Mode: ModeDecode, Module: AutoDetect}
	if strings.TrimSpace(text) == "" {
		res.Status = StatusEmpty
		return res, nil
	}

	for _, m := range e.registry.Modules() {
		dr, err := e.decodeModule(ctx, m, text, opts)
		if err != nil {
			return nil, err
		}
		if dr.Truncated {
			res.Truncated = true
		}
		if len(dr.Candidates) == 0 {
			continue
		}
		res.Sections = append(res.Sections, Section{
			Module:     m.Name,
			Candidates: dr.Candidates,
			Truncated:  dr.Truncated,
		})
	}

	if len(res.Sections) == 0 {
		res.Status = StatusNoModule
		res.Output = MsgNoModule
		return res, nil
	}
	res.Status = StatusOK
	res.Output = renderSections(res.Sections)
	return res, nil
}

// decodeModule runs one module and applies the dictionary requirement.
func (e *Engine) decodeModule(ctx context.Context, m *cipher.Module, text string, opts Options) (*cipher.DecodeResult, error) {
	dr, err := cipher.Decode(ctx, m, text, cipher.DecodeOptions{
		Dictionary:     e.dict,
		RequirePerfect: opts.RequirePerfect,
		Limits:         tighter(e.limits, opts.Limits),
	})
	if err != nil {
		return nil, err
	}
	if opts.RequireDictionary && e.dict != nil {
		kept := make([]string, 0, len(dr.Candidates))
		for _, c := range dr.Candidates {
			if e.dict.AllKnown(c) {
				kept = append(kept, c)
			}
		}
		dr.Candidates = kept
	}
	return dr, nil
}

func (e *Engine) checkInput(text string) error {
	if e.maxInput <= 0 {
		return nil
	}
	if n := utf8.RuneCountInString(text); n > e.maxInput {
		return errors.NewInputTooLarge(e.maxInput, n)
	}
	return nil
}

func renderSections(sections []Section) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		var b strings.Builder
		b.WriteString("# ")
		b.WriteString(s.Module)
		for _, c := range s.Candidates {
			b.WriteString("\n  • ")
			b.WriteString(c)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// tighter returns the stricter of two limits field by field; 0 is unbounded.
func tighter(a, b cipher.Limits) cipher.Limits {
	return cipher.Limits{
		MaxCandidates: minPositive(a.MaxCandidates, b.MaxCandidates),
		MaxSteps:      minPositive(a.MaxSteps, b.MaxSteps),
	}
}

func minPositive(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}
