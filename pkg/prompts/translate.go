// Package prompts builds the instructions handed to the translation gateway.
package prompts

import (
	"fmt"

	"github.com/entrhq/tiptranslate/pkg/types"
)

// languageLabels maps the codes the popup offers to the names used in
// instructions. Any other code is labeled English.
var languageLabels = map[types.Language]string{
	types.LanguageChinese: "Chinese",
	types.LanguageEnglish: "English",
}

const defaultLabel = "English"

// Label returns the human-readable language name interpolated into
// directed instructions.
func Label(lang types.Language) string {
	if label, ok := languageLabels[types.ParseLanguage(string(lang))]; ok {
		return label
	}
	return defaultLabel
}

// Detect builds the page agent's instruction, which leaves the direction of
// translation to the model.
func Detect(text string) string {
	return fmt.Sprintf("Please translate this text: %q into Chinese or English depending on the language, and return only the translated text.", text)
}

// Directed builds the popup's instruction from explicit source and target
// languages.
func Directed(source, target types.Language, text string) string {
	return fmt.Sprintf("Translate the following text from %s to %s: %q and return only the translated text.",
		Label(source), Label(target), text)
}
