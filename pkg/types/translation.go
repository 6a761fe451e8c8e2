package types

import "strings"

// Language is a two-letter language code selected in the popup.
type Language string

const (
	LanguageAuto    Language = "auto" // LanguageAuto lets the model detect the language.
	LanguageEnglish Language = "en"   // LanguageEnglish is English.
	LanguageChinese Language = "zh"   // LanguageChinese is Chinese.
)

// ParseLanguage normalizes a language code. An empty code maps to
// LanguageAuto; unknown codes are kept as given so the prompt builder can
// decide how to label them.
func ParseLanguage(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return LanguageAuto
	}
	return Language(code)
}

// String returns the language code.
func (l Language) String() string {
	return string(l)
}

// TranslationRequest is the text to translate plus optional language hints.
// The page agent only sets Text.
type TranslationRequest struct {
	Text       string
	SourceLang Language
	TargetLang Language
}

// HasLanguages returns true if the request names explicit languages, which is
// how popup requests are told apart from page requests.
func (r TranslationRequest) HasLanguages() bool {
	return r.SourceLang != "" || r.TargetLang != ""
}

// TranslationResult is the single outcome of a translation request.
type TranslationResult struct {
	// Cause is the underlying error of a failure. It is never serialized.
	Cause error

	// Translation is set only when Success is true.
	Translation string

	// Message describes a failure.
	Message string

	Success bool
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(translation string) TranslationResult {
	return TranslationResult{
		Success:     true,
		Translation: translation,
	}
}

// NewFailureResult creates a failed result.
func NewFailureResult(message string, cause error) TranslationResult {
	return TranslationResult{
		Message: message,
		Cause:   cause,
	}
}
