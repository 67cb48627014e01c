package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/catalog"
	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/engine"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "decoder", "modules"
}

// DecoderForm holds the submitted decoder form values.
type DecoderForm struct {
	Mode              engine.Mode
	Module            string
	Text              string
	RequirePerfect    bool
	RequireDictionary bool
	IgnoreCase        bool
}

// DecoderPageData is the template data for the decoder page.
type DecoderPageData struct {
	PageData
	Modules []string
	Form    DecoderForm
	Result  *engine.Result
	Error   string
}

// ModuleRow is one line of the module list.
type ModuleRow struct {
	Name    string
	Keys    int
	Source  catalog.Source
	Reverse bool
	Summary string
}

// ModulesPageData is the template data for the module list page.
type ModulesPageData struct {
	PageData
	Items      []ModuleRow
	Dictionary int
}

// ModulePageData is the template data for the module detail page.
type ModulePageData struct {
	PageData
	Module      *cipher.Module
	Source      catalog.Source
	Description template.HTML
	Entries     []cipher.Entry
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	policy    *bluemonday.Policy
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"sep":  describeSeparator,
		"join": strings.Join,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"decoder": "decoder.html",
		"modules": "modules.html",
		"module":  "module.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		policy:    bluemonday.UGCPolicy(),
		logger:    logger,
	}
}

func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// asCipherError unwraps err. Unstructured and internal errors are logged
// and replaced by a generic INTERNAL error.
func (r *Renderer) asCipherError(err error) *errors.CipherError {
	var cErr *errors.CipherError
	if stderrors.As(err, &cErr) && cErr.Code != errors.ErrInternal {
		return cErr
	}
	r.logger.Error("request failed", zap.Error(err))
	return errors.NewInternal(nil)
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	cErr := r.asCipherError(err)

	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderJSONError(w, cErr)
		return
	}

	r.renderPageStatus(w, cErr.Status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", cErr.Status), ""),
		StatusCode: cErr.Status,
		Message:    cErr.Message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func renderJSONError(w http.ResponseWriter, cErr *errors.CipherError) {
	errObj := map[string]any{
		"code":    string(cErr.Code),
		"message": cErr.Message,
		"status":  cErr.Status,
	}
	if cErr.Code != errors.ErrInternal && cErr.Details != nil {
		errObj["details"] = cErr.Details
	}
	renderJSON(w, cErr.Status, map[string]any{"error": errObj})
}

// renderMarkdown converts markdown to sanitized HTML.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// describeSeparator shows a separator the way the module file spells it.
func describeSeparator(sep string) string {
	if sep == "" {
		return "none"
	}
	return fmt.Sprintf("%q", sep)
}

// summary returns the first line of a markdown description, without a
// leading heading marker.
func summary(desc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(desc), "\n")
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}
