package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/loginform/internal/loginform/form"
	custommw "finitefield.org/loginform/internal/loginform/httpserver/middleware"
	"finitefield.org/loginform/internal/loginform/i18n"
	"finitefield.org/loginform/internal/loginform/observability"
	"finitefield.org/loginform/internal/loginform/templates/login"
)

const (
	defaultPollWindow = 20 * time.Second
	defaultPollDelay  = 250 * time.Millisecond
)

type formHandlersConfig struct {
	Registry   *form.Registry
	Tokens     *tokenCodec
	Bundle     *i18n.Bundle
	BasePath   string
	CSRFHeader string
	PollWindow time.Duration
	PollDelay  time.Duration
}

type formHandlers struct {
	registry   *form.Registry
	tokens     *tokenCodec
	bundle     *i18n.Bundle
	basePath   string
	csrfHeader string
	pollWindow time.Duration
	pollDelay  time.Duration
}

func newFormHandlers(cfg formHandlersConfig) *formHandlers {
	if cfg.Registry == nil || cfg.Tokens == nil || cfg.Bundle == nil {
		panic("httpserver: form handlers require registry, tokens and bundle")
	}
	return &formHandlers{
		registry:   cfg.Registry,
		tokens:     cfg.Tokens,
		bundle:     cfg.Bundle,
		basePath:   cfg.BasePath,
		csrfHeader: cfg.CSRFHeader,
		pollWindow: durationOr(cfg.PollWindow, defaultPollWindow),
		pollDelay:  durationOr(cfg.PollDelay, defaultPollDelay),
	}
}

// Mount creates a fresh form and renders the full page around it.
func (h *formHandlers) Mount(w http.ResponseWriter, r *http.Request) {
	f := h.registry.Mount(r.Context())
	token, err := h.tokens.Encode(f.ID())
	if err != nil {
		h.registry.Unmount(f.ID())
		observability.FromContext(r.Context()).Error("encode form token", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	observability.FromContext(r.Context()).Debug("login form mounted", zap.String("form_id", f.ID()))

	h.renderPage(w, r, h.buildFormData(r, token, f.Snapshot()), http.StatusOK)
}

// State renders the current form. htmx requests long-poll while a request is in flight.
func (h *formHandlers) State(w http.ResponseWriter, r *http.Request) {
	f, token, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if !custommw.IsHTMXRequest(r.Context()) {
		h.renderPage(w, r, h.buildFormData(r, token, f.Snapshot()), http.StatusOK)
		return
	}

	st, changed := f.Watch()
	if st.Loading {
		timer := time.NewTimer(h.pollWindow)
		select {
		case <-changed:
		case <-timer.C:
		case <-r.Context().Done():
		}
		timer.Stop()
	}

	h.renderForm(w, r, h.buildFormData(r, token, f.Snapshot()), http.StatusOK)
}

// Input applies field values from the request body and re-renders the submit control.
// Only reachable by htmx requests.
func (h *formHandlers) Input(w http.ResponseWriter, r *http.Request) {
	f, token, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.applyFields(r, f); err != nil {
		h.handleFormError(w, r, err)
		return
	}

	templ.Handler(login.SubmitButton(h.buildFormData(r, token, f.Snapshot()))).ServeHTTP(w, r)
}

// Submit applies field values then starts the user request. A disabled control yields 422.
func (h *formHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	f, token, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.applyFields(r, f); err != nil {
		h.handleFormError(w, r, err)
		return
	}

	if !f.Submit() {
		h.respond(w, r, h.buildFormData(r, token, f.Snapshot()), http.StatusUnprocessableEntity)
		return
	}

	if custommw.IsHTMXRequest(r.Context()) {
		h.renderForm(w, r, h.buildFormData(r, token, f.Snapshot()), http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.pollWindow)
	defer cancel()
	st, err := f.WaitSettled(ctx)
	switch {
	case errors.Is(err, form.ErrNotMounted):
		h.notFound(w, r)
		return
	case err != nil:
		// Still loading; the rendered form polls until it settles.
		st = f.Snapshot()
	}
	h.renderPage(w, r, h.buildFormData(r, token, st), http.StatusOK)
}

// Unmount discards the form addressed by the token.
func (h *formHandlers) Unmount(w http.ResponseWriter, r *http.Request) {
	id, err := h.tokens.Decode(chi.URLParam(r, "token"))
	if err != nil || !h.registry.Unmount(id) {
		h.notFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *formHandlers) lookup(w http.ResponseWriter, r *http.Request) (*form.Form, string, bool) {
	token := chi.URLParam(r, "token")
	id, err := h.tokens.Decode(token)
	if err != nil {
		h.notFound(w, r)
		return nil, "", false
	}
	f, ok := h.registry.Get(id)
	if !ok {
		h.notFound(w, r)
		return nil, "", false
	}
	return f, token, true
}

func (h *formHandlers) applyFields(r *http.Request, f *form.Form) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	if values, ok := r.PostForm["username"]; ok && len(values) > 0 {
		if err := f.SetUsername(values[0]); err != nil {
			return err
		}
	}
	if values, ok := r.PostForm["password"]; ok && len(values) > 0 {
		if err := f.SetPassword(values[0]); err != nil {
			return err
		}
	}
	return nil
}

func (h *formHandlers) handleFormError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, form.ErrNotMounted) {
		h.notFound(w, r)
		return
	}
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

func (h *formHandlers) notFound(w http.ResponseWriter, r *http.Request) {
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Refresh", "true")
	}
	http.NotFound(w, r)
}

func (h *formHandlers) buildFormData(r *http.Request, token string, st form.State) login.FormData {
	lang := h.bundle.Resolve(r.Header.Get("Accept-Language"))
	statePath := joinPath(h.basePath, "forms/"+token)

	data := login.FormData{
		Token:      token,
		CSRFToken:  custommw.CSRFTokenFromContext(r.Context()),
		Username:   st.Username,
		Password:   st.Password,
		Loading:    st.Loading,
		Error:      st.Error,
		CanSubmit:  st.CanSubmit(),
		InputPath:  statePath + "/input",
		SubmitPath: statePath + "/submit",
		StatePath:  statePath,
		PollDelay:  fmt.Sprintf("%dms", h.pollDelay.Milliseconds()),
		Labels:     h.labels(lang),
	}
	if st.User != nil {
		data.UserName = st.User.Name
	}
	return data
}

func (h *formHandlers) labels(lang string) login.Labels {
	return login.Labels{
		Title:               h.bundle.T(lang, "login.title"),
		UsernamePlaceholder: h.bundle.T(lang, "login.username.placeholder"),
		PasswordPlaceholder: h.bundle.T(lang, "login.password.placeholder"),
		Submit:              h.bundle.T(lang, "login.submit"),
		SubmitBusy:          h.bundle.T(lang, "login.submit.busy"),
		Error:               h.bundle.T(lang, "login.error"),
	}
}

func (h *formHandlers) respond(w http.ResponseWriter, r *http.Request, data login.FormData, status int) {
	if custommw.IsHTMXRequest(r.Context()) {
		h.renderForm(w, r, data, status)
		return
	}
	h.renderPage(w, r, data, status)
}

func (h *formHandlers) renderForm(w http.ResponseWriter, r *http.Request, data login.FormData, status int) {
	templ.Handler(login.Form(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *formHandlers) renderPage(w http.ResponseWriter, r *http.Request, data login.FormData, status int) {
	page := login.PageData{
		Lang:       h.bundle.Resolve(r.Header.Get("Accept-Language")),
		CSRFHeader: h.csrfHeader,
		AssetBase:  assetBase,
		Form:       data,
	}
	templ.Handler(login.Page(page), templ.WithStatus(status)).ServeHTTP(w, r)
}
