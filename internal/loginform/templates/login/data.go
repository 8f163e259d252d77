package login

// Labels carries the localised strings rendered by the form.
type Labels struct {
	Title               string
	UsernamePlaceholder string
	PasswordPlaceholder string
	Submit              string
	SubmitBusy          string
	Error               string
}

// FormData is the rendering state for one mounted form.
type FormData struct {
	Token     string
	CSRFToken string
	Username  string
	Password  string
	Loading   bool
	Error     bool
	UserName  string
	// CanSubmit mirrors the submit control's enabled state.
	CanSubmit bool

	InputPath  string
	SubmitPath string
	StatePath  string
	// PollDelay is the htmx delay before re-polling while a request is in flight.
	PollDelay string

	Labels Labels
}

// PageData wraps FormData with page chrome.
type PageData struct {
	Lang       string
	CSRFHeader string
	AssetBase  string
	Form       FormData
}

// ButtonLabel returns the busy label while loading, otherwise the default label.
func (d FormData) ButtonLabel() string {
	if d.Loading {
		return d.Labels.SubmitBusy
	}
	return d.Labels.Submit
}

// ErrorVisibility returns the CSS visibility value for the status text.
func (d FormData) ErrorVisibility() string {
	if d.Error {
		return "visible"
	}
	return "hidden"
}
