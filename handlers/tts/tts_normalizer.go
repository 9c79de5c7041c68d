package tts

import (
	"regexp"
	"strings"
)

var (
	markdownReplacer = strings.NewReplacer(
		"**", "", // bold
		"__", "", // underline
		"~~", "", // strikethrough
		"`", "",  // inline code
		"*", "",  // italic, bullets
		"#", "",  // headings
	)
	emojiRegex          = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{FE0F}\x{200D}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// normalizeTextForTTS removes what a voice should not read aloud: markdown
// markers, emoji and layout whitespace.
func normalizeTextForTTS(text string) string {
	text = markdownReplacer.Replace(text)
	text = emojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
