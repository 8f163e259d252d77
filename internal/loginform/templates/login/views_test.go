package login

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"
)

func testLabels() Labels {
	return Labels{
		Title:               "Login",
		UsernamePlaceholder: "username",
		PasswordPlaceholder: "password",
		Submit:              "Login",
		SubmitBusy:          "Loading...",
		Error:               "Something went wrong",
	}
}

func render(t *testing.T, c templ.Component) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf), "component must render without error")

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err, "html must parse")
	return doc
}

func TestFormRendersInitialState(t *testing.T) {
	t.Parallel()

	doc := render(t, Form(FormData{Labels: testLabels(), SubmitPath: "/login/forms/t/submit", InputPath: "/login/forms/t/input"}))

	username := doc.Find("input[placeholder=username]")
	require.Equal(t, 1, username.Length())
	require.Equal(t, "text", username.AttrOr("type", ""))
	require.Equal(t, "", username.AttrOr("value", "missing"))
	_, disabled := username.Attr("disabled")
	require.False(t, disabled, "username input is always enabled")

	password := doc.Find("input[placeholder=password]")
	require.Equal(t, 1, password.Length())
	require.Equal(t, "password", password.AttrOr("type", ""))
	require.Equal(t, "/login/forms/t/input", password.AttrOr("hx-post", ""))

	button := doc.Find("button")
	require.Equal(t, 1, button.Length())
	_, disabled = button.Attr("disabled")
	require.True(t, disabled, "button should be disabled by default")
	require.Equal(t, "Login", strings.TrimSpace(button.Text()))

	status := doc.Find("[data-testid=error-message]")
	require.Equal(t, 1, status.Length(), "status text is always present")
	require.Equal(t, "visibility: hidden", status.AttrOr("style", ""))
	require.Equal(t, "Something went wrong", status.Text())

	require.Empty(t, doc.Find("span.user").Text())
	_, polling := doc.Find("#" + FormElementID).Attr("hx-get")
	require.False(t, polling)
}

func TestFormRendersLoadingAndSettledStates(t *testing.T) {
	t.Parallel()

	t.Run("loading", func(t *testing.T) {
		doc := render(t, Form(FormData{
			Labels:    testLabels(),
			Username:  "test",
			Password:  "test",
			CanSubmit: true,
			Loading:   true,
			StatePath: "/login/forms/t",
		}))
		button := doc.Find("button")
		require.Equal(t, "Loading...", button.Text())
		_, disabled := button.Attr("disabled")
		require.False(t, disabled)

		container := doc.Find("#" + FormElementID)
		require.Equal(t, "/login/forms/t", container.AttrOr("hx-get", ""))
		require.Equal(t, "load delay:250ms", container.AttrOr("hx-trigger", ""))
	})

	t.Run("success", func(t *testing.T) {
		doc := render(t, Form(FormData{Labels: testLabels(), CanSubmit: true, UserName: "John"}))
		require.Equal(t, "Login", doc.Find("button").Text())
		require.Equal(t, "John", doc.Find("span.user").Text())
		require.Equal(t, "visibility: hidden", doc.Find("[data-testid=error-message]").AttrOr("style", ""))
	})

	t.Run("error", func(t *testing.T) {
		doc := render(t, Form(FormData{Labels: testLabels(), CanSubmit: true, Error: true, UserName: "John"}))
		require.Equal(t, "visibility: visible", doc.Find("[data-testid=error-message]").AttrOr("style", ""))
		require.Equal(t, "John", doc.Find("span.user").Text())
	})
}

func TestFormEscapesValues(t *testing.T) {
	t.Parallel()

	doc := render(t, Form(FormData{Labels: testLabels(), Username: `"><script>x</script>`, UserName: "<b>John</b>"}))
	require.Equal(t, `"><script>x</script>`, doc.Find("input[name=username]").AttrOr("value", ""))
	require.Equal(t, "<b>John</b>", doc.Find("span.user").Text())
	require.Equal(t, 0, doc.Find("script").Length())
	require.Equal(t, 0, doc.Find("span.user b").Length())
}

func TestPageIncludesCSRFHeaders(t *testing.T) {
	t.Parallel()

	doc := render(t, Page(PageData{
		Lang:       "ja",
		CSRFHeader: "X-CSRF-Token",
		AssetBase:  "/public/static",
		Form:       FormData{Labels: testLabels(), CSRFToken: "tok"},
	}))

	require.Equal(t, "Login", doc.Find("title").Text())
	require.Equal(t, "ja", doc.Find("html").AttrOr("lang", ""))
	require.Equal(t, `{"X-CSRF-Token":"tok"}`, doc.Find("body").AttrOr("hx-headers", ""))
	require.Equal(t, "tok", doc.Find("input[name=_csrf]").AttrOr("value", ""))
	require.Equal(t, "/public/static/login.css", doc.Find("link[rel=stylesheet]").AttrOr("href", ""))
	require.Equal(t, "/public/static/login.js", doc.Find("head script").AttrOr("src", ""))
	require.Equal(t, 0, doc.Find(`script[src^="http"]`).Length(), "scripts are served from embedded assets")
	require.Equal(t, 1, doc.Find("main #"+FormElementID).Length())
}

func TestSubmitButtonFragment(t *testing.T) {
	t.Parallel()

	doc := render(t, SubmitButton(FormData{Labels: testLabels(), CanSubmit: true}))
	button := doc.Find("#" + SubmitElementID)
	require.Equal(t, 1, button.Length())
	_, disabled := button.Attr("disabled")
	require.False(t, disabled)
}
