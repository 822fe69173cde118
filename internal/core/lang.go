package core

import (
	"path"
	"strings"
)

// languages maps file extensions to the language hint handed to the editor widget.
var languages = map[string]string{
	".html": "html",
	".css":  "css",
	".js":   "javascript",
	".json": "json",
	".md":   "markdown",
}

// LanguageFor returns the editor language for a file path, "plaintext" when
// the extension is unknown.
func LanguageFor(p string) string {
	if lang, ok := languages[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return "plaintext"
}
