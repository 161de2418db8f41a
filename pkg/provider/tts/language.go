package tts

// locales maps the service's language codes to the regional locale most
// backends expect.
var locales = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
	"bn": "bn-IN",
	"ta": "ta-IN",
	"te": "te-IN",
	"ml": "ml-IN",
}

// Locale returns the BCP-47 locale for lang, or lang itself when no regional
// mapping is known.
func Locale(lang string) string {
	if l, ok := locales[lang]; ok {
		return l
	}
	return lang
}
