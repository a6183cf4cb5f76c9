// Package syntax checks that a candidate file still parses, using
// tree-sitter grammars for the file types components ship in.
package syntax

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// File types understood by the validator.
const (
	TypeTSX        = "tsx"
	TypeTypeScript = "typescript"
	TypeJavaScript = "javascript"
	TypeCSS        = "css"
	TypeHTML       = "html"
	TypeYAML       = "yaml"
	TypeText       = "text"
)

var extensions = map[string]string{
	".tsx":  TypeTSX,
	".ts":   TypeTypeScript,
	".mts":  TypeTypeScript,
	".cts":  TypeTypeScript,
	".js":   TypeJavaScript,
	".jsx":  TypeJavaScript,
	".mjs":  TypeJavaScript,
	".cjs":  TypeJavaScript,
	".css":  TypeCSS,
	".html": TypeHTML,
	".yaml": TypeYAML,
	".yml":  TypeYAML,
}

// FileType maps a path to a file type by extension. Unknown extensions are
// TypeText.
func FileType(path string) string {
	if t, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return TypeText
}

// Validator parses candidates with tree-sitter. It is safe for concurrent
// use; each call gets its own parser.
type Validator struct{}

// New returns a Validator.
func New() *Validator {
	return &Validator{}
}

// Supports reports whether fileType has a grammar.
func (v *Validator) Supports(fileType string) bool {
	return language(fileType) != nil
}

// WellFormed reports whether text parses without error nodes. File types
// without a grammar are accepted as-is.
func (v *Validator) WellFormed(ctx context.Context, fileType, text string) (bool, error) {
	lang := language(fileType)
	if lang == nil {
		return true, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte(text))
	if err != nil {
		return false, fmt.Errorf("parsing %s failed: %w", fileType, err)
	}
	defer tree.Close()

	return !tree.RootNode().HasError(), nil
}

func language(fileType string) *sitter.Language {
	switch fileType {
	case TypeTSX:
		return tsx.GetLanguage()
	case TypeTypeScript:
		return typescript.GetLanguage()
	case TypeJavaScript:
		return javascript.GetLanguage()
	case TypeCSS:
		return css.GetLanguage()
	case TypeHTML:
		return html.GetLanguage()
	case TypeYAML:
		return yaml.GetLanguage()
	}
	return nil
}
