package login

import (
	"context"
	"encoding/json"
	"io"

	"github.com/a-h/templ"
)

const (
	// FormElementID is the swap target for every form fragment.
	FormElementID = "login-form"
	// SubmitElementID is the swap target for input updates.
	SubmitElementID = "login-submit"

	scriptAsset     = "/login.js"
	stylesheetAsset = "/login.css"
)

// Page renders the full login document around the form.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		lang := data.Lang
		if lang == "" {
			lang = "en"
		}
		out.raw(`<!DOCTYPE html><html lang="`)
		out.text(lang)
		out.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		out.text(data.Form.Labels.Title)
		out.raw(`</title><link rel="stylesheet" href="`)
		out.text(data.AssetBase + stylesheetAsset)
		out.raw(`"><script src="`)
		out.text(data.AssetBase + scriptAsset)
		out.raw(`" defer></script></head><body`)
		if data.CSRFHeader != "" && data.Form.CSRFToken != "" {
			headers, err := json.Marshal(map[string]string{data.CSRFHeader: data.Form.CSRFToken})
			if err != nil {
				return err
			}
			out.attr("hx-headers", string(headers))
		}
		out.raw(`><main>`)
		if out.err != nil {
			return out.err
		}
		if err := renderForm(w, data.Form); err != nil {
			return err
		}
		out.raw(`</main></body></html>`)
		return out.err
	})
}

// Form renders the swappable form container.
func Form(data FormData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return renderForm(w, data)
	})
}

// SubmitButton renders only the submit control; returned after each keystroke.
func SubmitButton(data FormData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := &writer{w: w}
		renderButton(out, data)
		return out.err
	})
}

func renderForm(w io.Writer, data FormData) error {
	out := &writer{w: w}

	out.raw(`<div class="container"`)
	out.attr("id", FormElementID)
	if data.Loading && data.StatePath != "" {
		// Keep polling until the request settles.
		out.attr("hx-get", data.StatePath)
		out.attr("hx-trigger", "load delay:"+pollDelay(data.PollDelay))
		out.attr("hx-swap", "outerHTML")
	}
	out.raw(`><span class="user">`)
	out.text(data.UserName)
	out.raw(`</span><form method="post"`)
	out.attr("action", data.SubmitPath)
	out.attr("hx-post", data.SubmitPath)
	out.attr("hx-target", "#"+FormElementID)
	out.attr("hx-swap", "outerHTML")
	out.raw(`>`)

	if data.CSRFToken != "" {
		out.raw(`<input type="hidden" name="_csrf"`)
		out.attr("value", data.CSRFToken)
		out.raw(`>`)
	}

	renderInput(out, data, "text", "username", data.Labels.UsernamePlaceholder, data.Username)
	renderInput(out, data, "password", "password", data.Labels.PasswordPlaceholder, data.Password)
	renderButton(out, data)

	out.raw(`<span data-testid="error-message"`)
	out.attr("style", "visibility: "+data.ErrorVisibility())
	out.raw(`>`)
	out.text(data.Labels.Error)
	out.raw(`</span></form></div>`)
	return out.err
}

func renderInput(out *writer, data FormData, kind, name, placeholder, value string) {
	out.raw(`<input`)
	out.attr("type", kind)
	out.attr("placeholder", placeholder)
	out.attr("name", name)
	out.attr("value", value)
	out.attr("autocomplete", autocompleteFor(name))
	if data.InputPath != "" {
		out.attr("hx-post", data.InputPath)
		out.attr("hx-trigger", "input changed delay:150ms")
		out.attr("hx-target", "#"+SubmitElementID)
		out.attr("hx-swap", "outerHTML")
		out.attr("hx-include", "closest form")
	}
	out.raw(`>`)
}

func renderButton(out *writer, data FormData) {
	out.raw(`<button type="submit"`)
	out.attr("id", SubmitElementID)
	if !data.CanSubmit {
		out.raw(` disabled`)
	}
	out.raw(`>`)
	out.text(data.ButtonLabel())
	out.raw(`</button>`)
}

func autocompleteFor(name string) string {
	if name == "password" {
		return "current-password"
	}
	return "username"
}

func pollDelay(v string) string {
	if v == "" {
		return "250ms"
	}
	return v
}

// writer stops writing after the first error.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) attr(name, value string) {
	w.raw(" " + name + `="`)
	w.text(value)
	w.raw(`"`)
}
