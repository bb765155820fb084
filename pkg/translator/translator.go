package translator

import (
	"embed"
	"os"
	"path"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed translation/*.toml
var builtin embed.FS

const (
	LanguageEn = "en"
	LanguageFr = "fr"
)

type Config struct {
	// TranslationFolder holds extra or overriding <lang>.toml files.
	TranslationFolder string
}

// Translator resolves message ids to localized text.
type Translator struct {
	bundle *i18n.Bundle
}

// Default is used by packages that have no translator injected.
var Default = New(Config{})

// Init replaces Default. Call it once at startup.
func Init(cfg Config) {
	Default = New(cfg)
}

// New loads the built-in messages, then any files in cfg.TranslationFolder.
func New(cfg Config) *Translator {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := builtin.ReadDir("translation")
	if err != nil {
		zap.L().Error("failed to list built-in translations", zap.Error(err))
	}
	for _, f := range files {
		if _, err := bundle.LoadMessageFileFS(builtin, path.Join("translation", f.Name())); err != nil {
			zap.L().Warn("failed to load built-in translation", zap.String("file", f.Name()), zap.Error(err))
		}
	}

	if cfg.TranslationFolder != "" {
		loadFolder(bundle, cfg.TranslationFolder)
	}
	return &Translator{bundle: bundle}
}

func loadFolder(bundle *i18n.Bundle, folder string) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		zap.L().Error("failed to list translation folder", zap.String("folder", folder), zap.Error(err))
		return
	}
	for _, f := range entries {
		if f.IsDir() {
			continue
		}
		if _, err := bundle.LoadMessageFile(filepath.Join(folder, f.Name())); err != nil {
			zap.L().Warn("failed to load translation file", zap.String("file", f.Name()), zap.Error(err))
		}
	}
}

func (t *Translator) Bundle() *i18n.Bundle { return t.bundle }

// For returns a localizer for an Accept-Language style value, falling
// back to English.
func (t *Translator) For(lang string) *Localizer {
	return &Localizer{
		lang:      lang,
		localizer: i18n.NewLocalizer(t.bundle, lang, LanguageEn),
	}
}

type Localizer struct {
	lang      string
	localizer *i18n.Localizer
}

// Localize renders id with data. count selects the plural form and is
// ignored when nil. Unknown ids come back unchanged.
func (l *Localizer) Localize(id string, data map[string]any, count any) string {
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
		PluralCount:  count,
	})
	if err != nil {
		zap.L().Warn("translation not found", zap.String("lang", l.lang), zap.String("message_id", id), zap.Error(err))
		return id
	}
	return msg
}
