package cipher

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// errBudget stops a decode once its step budget is spent.
var errBudget = errors.New("decode budget exhausted")

// Limits bounds the work of a single decode. Zero values mean unbounded.
type Limits struct {
	// MaxCandidates caps every intermediate candidate list and the final
	// result of one module.
	MaxCandidates int `json:"max_candidates,omitempty"`

	// MaxSteps caps recursion nodes plus cross-product steps.
	MaxSteps int `json:"max_steps,omitempty"`
}

// DecodeOptions controls Decode.
type DecodeOptions struct {
	// Dictionary, when set, ranks ambiguous candidates.
	Dictionary *Dictionary

	// RequirePerfect abandons any path containing an unmapped token. When
	// false, unmapped input passes through literally.
	RequirePerfect bool

	Limits Limits
}

// DecodeResult holds the distinct candidates of one module, in discovery order.
type DecodeResult struct {
	Candidates []string `json:"candidates"`

	// Truncated is set when a limit cut the search short. Candidates is then
	// a subset of the unbounded result.
	Truncated bool `json:"truncated,omitempty"`
}

// Decode returns every plaintext the module can read from ciphertext.
//
// The only error is ctx.Err() when ctx is cancelled mid-search. Running out
// of budget is not an error: the candidates found so far are returned with
// Truncated set.
func Decode(ctx context.Context, m *Module, ciphertext string, opts DecodeOptions) (*DecodeResult, error) {
	res := &DecodeResult{Candidates: []string{}}
	if m == nil || strings.TrimSpace(ciphertext) == "" {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := &decoder{
		ctx:     ctx,
		dict:    opts.Dictionary,
		dmap:    m.DecodeMap(),
		lenient: !opts.RequirePerfect,
		limits:  opts.Limits,
	}
	for _, k := range d.dmap.Keys() {
		// An empty key would match without consuming input.
		if k != "" {
			d.keys = append(d.keys, k)
		}
	}

	seen := make(map[string]bool)
	add := func(paths []string) {
		for _, p := range paths {
			p = strings.TrimSpace(p)
			if seen[p] {
				continue
			}
			if d.full(len(res.Candidates)) {
				d.truncated = true
				return
			}
			seen[p] = true
			res.Candidates = append(res.Candidates, p)
		}
	}

	for _, cfg := range Tokenize(m, ciphertext) {
		paths, err := d.decodeConfig(cfg)
		add(paths)
		if errors.Is(err, errBudget) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	res.Truncated = d.truncated
	if opts.Dictionary != nil {
		res.Candidates = opts.Dictionary.Rank(res.Candidates)
	}
	return res, nil
}

type decoder struct {
	ctx       context.Context
	dict      *Dictionary
	dmap      *Mapping
	keys      []string
	lenient   bool
	limits    Limits
	steps     int
	truncated bool
}

// step charges one unit of work and checks for cancellation.
func (d *decoder) step() error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.steps++
	if d.limits.MaxSteps > 0 && d.steps > d.limits.MaxSteps {
		d.truncated = true
		return errBudget
	}
	return nil
}

func (d *decoder) full(n int) bool {
	return d.limits.MaxCandidates > 0 && n >= d.limits.MaxCandidates
}

// decodeConfig decodes every word of one tokenization and joins the words
// with single spaces. Only complete messages are returned.
func (d *decoder) decodeConfig(cfg Tokenization) ([]string, error) {
	paths := []string{""}
	for i, toks := range cfg.Words {
		var variants []string
		var err error
		if cfg.BlankSeparator && len(toks) == 1 {
			variants, err = d.expand(toks[0], 0, make(map[int][]string))
		} else {
			variants, err = d.product(toks)
		}

		if err != nil && !(errors.Is(err, errBudget) && i == len(cfg.Words)-1) {
			// A budget stop before the last word leaves no complete message.
			return nil, err
		}
		if len(variants) == 0 {
			return nil, err
		}
		// Word scores add up, so ranking each word keeps exactly the top
		// messages and stops the cross product from crowding them out.
		if d.dict != nil {
			variants = d.dict.Rank(variants)
		}
		paths = d.joinWords(paths, variants)
		if err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func (d *decoder) joinWords(paths, variants []string) []string {
	next := make([]string, 0, len(paths)*len(variants))
	for _, p := range paths {
		for _, v := range variants {
			if d.full(len(next)) {
				d.truncated = true
				return next
			}
			if p == "" {
				next = append(next, v)
			} else {
				next = append(next, p+" "+v)
			}
		}
	}
	return next
}

// expand returns every decoding of word[pos:], trying each key that prefixes
// the remainder. In lenient mode a position no key matches consumes one raw
// character. Results are memoized by position within the word.
func (d *decoder) expand(word string, pos int, memo map[int][]string) ([]string, error) {
	if pos == len(word) {
		return []string{""}, nil
	}
	if out, ok := memo[pos]; ok {
		return out, nil
	}
	if err := d.step(); err != nil {
		return nil, err
	}

	rest := word[pos:]
	var out []string
	matched := false
	for _, key := range d.keys {
		if !strings.HasPrefix(rest, key) {
			continue
		}
		matched = true
		tails, err := d.expand(word, pos+len(key), memo)
		values, _ := d.dmap.Lookup(key)
		out = d.prepend(out, values, tails)
		if err != nil {
			return out, err
		}
		if d.full(len(out)) {
			d.truncated = true
			break
		}
	}

	if !matched && d.lenient {
		_, size := utf8.DecodeRuneInString(rest)
		tails, err := d.expand(word, pos+size, memo)
		out = d.prepend(out, []string{rest[:size]}, tails)
		if err != nil {
			return out, err
		}
	}

	memo[pos] = out
	return out, nil
}

func (d *decoder) prepend(out, heads, tails []string) []string {
	for _, h := range heads {
		for _, t := range tails {
			if d.full(len(out)) {
				d.truncated = true
				return out
			}
			out = append(out, h+t)
		}
	}
	return out
}

// product expands each token by direct lookup and returns the cross product
// of the choices. In strict mode an unmapped token kills the word.
func (d *decoder) product(tokens []string) ([]string, error) {
	acc := []string{""}
	for _, tok := range tokens {
		if err := d.step(); err != nil {
			return nil, err
		}
		choices, ok := d.dmap.Lookup(tok)
		if !ok {
			if !d.lenient {
				return nil, nil
			}
			choices = []string{tok}
		}
		acc = d.prepend(nil, acc, choices)
		if len(acc) == 0 {
			return nil, nil
		}
	}
	return acc, nil
}
