package annotation

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"net/http"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

// Locales lists the embedded translations
var Locales = []string{"en", "pt-BR"}

var (
	bundle        *i18n.Bundle
	defaultLocal  *i18n.Localizer
	currentLocale string = "en"
)

type localizerKey struct{}

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, locale := range Locales {
		data, err := localesFS.ReadFile("locales/" + locale + ".json")
		if err != nil {
			log.Printf("i18n: failed to read locale file %s: %v", locale, err)
			continue
		}
		if _, err := bundle.ParseMessageFileBytes(data, locale+".json"); err != nil {
			log.Printf("i18n: failed to parse locale file %s: %v", locale, err)
		}
	}

	defaultLocal = i18n.NewLocalizer(bundle, currentLocale)
}

// SetLanguage sets the fallback language used when a request does not ask
// for one
func SetLanguage(lang string) {
	currentLocale = lang
	defaultLocal = i18n.NewLocalizer(bundle, currentLocale)
}

// GetLocalizerFromContext retrieves the localizer from context, or returns default
func GetLocalizerFromContext(ctx context.Context) *i18n.Localizer {
	if ctx == nil {
		return defaultLocal
	}
	if localizer, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return defaultLocal
}

// WithLocalizer adds a localizer to the context
func WithLocalizer(ctx context.Context, localizer *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, localizer)
}

// GetLocalizerFromRequest creates a localizer based on the Accept-Language header
func GetLocalizerFromRequest(r *http.Request) *i18n.Localizer {
	var langs []string
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err == nil {
		for _, tag := range tags {
			langs = append(langs, tag.String())
		}
	}
	langs = append(langs, currentLocale)
	return i18n.NewLocalizer(bundle, langs...)
}

// LocalizeWithContext translates a message using the localizer from context.
// Unknown ids are returned as is.
func LocalizeWithContext(ctx context.Context, messageID string) string {
	return LocalizeWithContextAndData(ctx, messageID, nil)
}

// LocalizeWithContextAndData translates a message with template data using context
func LocalizeWithContextAndData(ctx context.Context, messageID string, data map[string]any) string {
	localizer := GetLocalizerFromContext(ctx)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Translator is handed to templates so pages render in the request language:
// {{.T.T "login.title"}}
type Translator struct {
	ctx context.Context
}

func NewTranslator(ctx context.Context) Translator {
	return Translator{ctx: ctx}
}

func (t Translator) T(messageID string) string {
	return LocalizeWithContext(t.ctx, messageID)
}
