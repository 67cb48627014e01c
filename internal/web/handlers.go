package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/catalog"
	"github.com/hpungsan/cipherbox/internal/engine"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	engine   *engine.Engine
	sources  map[string]catalog.Source
	renderer *Renderer
	logger   *zap.Logger
}

// HandleDecoder handles GET /decoder: the empty decoder form.
func (h *Handlers) HandleDecoder(w http.ResponseWriter, r *http.Request) {
	form := DecoderForm{Mode: engine.ModeDecode, Module: engine.AutoDetect, RequirePerfect: true}
	if m := r.URL.Query().Get("module"); m != "" {
		form.Module = m
	}
	h.renderer.renderPage(w, "decoder", h.decoderPage(form))
}

// HandleDecoderSubmit handles POST /decoder: run the form and show the result.
func (h *Handlers) HandleDecoderSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	form := DecoderForm{
		Mode:              engine.Mode(r.FormValue("mode")),
		Module:            r.FormValue("module"),
		Text:              r.FormValue("text"),
		RequirePerfect:    formBool(r, "require_perfect"),
		RequireDictionary: formBool(r, "require_dictionary"),
		IgnoreCase:        formBool(r, "ignore_case"),
	}
	if form.Mode == "" {
		form.Mode = engine.ModeDecode
	}
	// Encoding needs a concrete module: fall back to the first one loaded.
	if form.Mode == engine.ModeEncode && (form.Module == "" || form.Module == engine.AutoDetect) {
		if names := h.engine.Registry().Names(); len(names) > 0 {
			form.Module = names[0]
		}
	}

	data := h.decoderPage(form)
	result, err := h.engine.Run(r.Context(), engine.Request{
		Mode:   form.Mode,
		Module: form.Module,
		Text:   form.Text,
		Options: engine.Options{
			RequirePerfect:    form.RequirePerfect,
			RequireDictionary: form.RequireDictionary,
			IgnoreCase:        form.IgnoreCase,
		},
	})
	if err != nil {
		cErr := h.renderer.asCipherError(err)
		data.Error = cErr.Message
		h.renderer.renderPageStatus(w, cErr.Status, "decoder", data)
		return
	}

	data.Result = result
	h.renderer.renderPage(w, "decoder", data)
}

func (h *Handlers) decoderPage(form DecoderForm) DecoderPageData {
	return DecoderPageData{
		PageData: h.renderer.page("Decoder", "decoder"),
		Modules:  append([]string{engine.AutoDetect}, h.engine.Registry().Names()...),
		Form:     form,
	}
}

// HandleModules handles GET /modules: list the loaded modules.
func (h *Handlers) HandleModules(w http.ResponseWriter, r *http.Request) {
	reg := h.engine.Registry()
	items := make([]ModuleRow, 0, reg.Len())
	for _, m := range reg.Modules() {
		items = append(items, ModuleRow{
			Name:    m.Name,
			Keys:    m.Mapping.Len(),
			Source:  h.sources[m.Name],
			Reverse: m.Settings.ReverseDirection,
			Summary: summary(m.Description),
		})
	}

	h.renderer.renderPage(w, "modules", ModulesPageData{
		PageData:   h.renderer.page("Modules", "modules"),
		Items:      items,
		Dictionary: h.engine.Dictionary().Len(),
	})
}

// HandleModule handles GET /modules/{name}: view a single module.
func (h *Handlers) HandleModule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("module name is required"))
		return
	}

	m, ok := h.engine.Registry().Get(name)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(name))
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, m)
		return
	}

	h.renderer.renderPage(w, "module", ModulePageData{
		PageData:    h.renderer.page(m.Name, "modules"),
		Module:      m,
		Source:      h.sources[m.Name],
		Description: h.renderer.renderMarkdown(m.Description),
		Entries:     m.DecodeMap().Entries(),
	})
}

// HandleAPIRun handles POST /api/run: run an engine request given as JSON.
func (h *Handlers) HandleAPIRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req engine.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		renderJSONError(w, errors.NewInvalidRequest("invalid JSON body: "+err.Error()))
		return
	}

	result, err := h.engine.Run(r.Context(), req)
	if err != nil {
		renderJSONError(w, h.renderer.asCipherError(err))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// formBool parses a checkbox form value.
func formBool(r *http.Request, name string) bool {
	s := r.FormValue(name)
	return s == "true" || s == "1" || s == "on"
}
