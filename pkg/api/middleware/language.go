package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/harrisonrobin/taskmaster/pkg/translator"
)

const langKey = "lang"

// supported is in matcher order; the first entry is the fallback.
var supported = []string{translator.LanguageEn, translator.LanguageFr}

var matcher = language.NewMatcher([]language.Tag{language.English, language.French})

// LanguageMiddleware negotiates the Accept-Language header against the
// bundled translations and stores the result for GetLang.
func LanguageMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(langKey, Negotiate(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// Negotiate picks a supported language for an Accept-Language value,
// English when nothing matches.
func Negotiate(header string) string {
	if header == "" {
		return supported[0]
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, i, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return supported[0]
	}
	return supported[i]
}

func GetLang(c *gin.Context) string {
	if lang, ok := c.Get(langKey); ok {
		if s, ok := lang.(string); ok {
			return s
		}
	}
	return translator.LanguageEn
}
