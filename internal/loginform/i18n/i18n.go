package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Bundle holds flat key/value translations per language.
type Bundle struct {
	dict     map[string]map[string]string
	fallback string
	tags     []language.Tag
	matcher  language.Matcher
}

// Default loads the locales shipped with the binary, falling back to fallback
// (or "en" when empty).
func Default(fallback string) (*Bundle, error) {
	if strings.TrimSpace(fallback) == "" {
		fallback = "en"
	}
	return Load(embedded, "locales", fallback, []string{"en", "ja"})
}

// Load reads <dir>/<lang>.yaml for every supported language. Only the fallback locale
// is required.
func Load(fsys fs.FS, dir, fallback string, supported []string) (*Bundle, error) {
	if len(supported) == 0 {
		supported = []string{fallback}
	}
	b := &Bundle{
		dict:     map[string]map[string]string{},
		fallback: fallback,
	}

	// The fallback tag goes first so the matcher prefers it when nothing matches.
	ordered := append([]string{fallback}, supported...)
	seen := map[string]struct{}{}
	for _, lang := range ordered {
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}

		raw, err := fs.ReadFile(fsys, path.Join(dir, lang+".yaml"))
		if err != nil {
			if lang == fallback {
				return nil, fmt.Errorf("i18n: load locale %s: %w", lang, err)
			}
			continue
		}
		var m map[string]string
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("i18n: unmarshal %s: %w", lang, err)
		}
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("i18n: parse tag %s: %w", lang, err)
		}
		b.dict[lang] = m
		b.tags = append(b.tags, tag)
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

// Supported returns the loaded languages in sorted order.
func (b *Bundle) Supported() []string {
	out := make([]string, 0, len(b.dict))
	for k := range b.dict {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// T returns the translation for key in lang, falling back to the default language and
// finally to the key itself.
func (b *Bundle) T(lang, key string) string {
	if m, ok := b.dict[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := b.dict[b.fallback]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Resolve chooses the best loaded language for an Accept-Language header.
func (b *Bundle) Resolve(acceptLang string) string {
	if strings.TrimSpace(acceptLang) == "" {
		return b.fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(prefs...)
	if conf == language.No || idx < 0 || idx >= len(b.tags) {
		return b.fallback
	}
	base, _ := b.tags[idx].Base()
	lang := base.String()
	if _, ok := b.dict[lang]; !ok {
		return b.fallback
	}
	return lang
}
