package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codemate/pkg/types"
)

func TestParseGo(t *testing.T) {
	p := New()
	src := []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")

	tree, err := p.Parse(context.Background(), types.LanguageGo, src)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "source_file", root.Type())
	assert.False(t, root.HasError())
}

func TestParseRustWithSyntaxError(t *testing.T) {
	p := New()
	src := []byte("fn broken( {\n")

	tree, err := p.Parse(context.Background(), types.LanguageRust, src)
	require.NoError(t, err)
	defer tree.Close()

	// Error tolerance: a tree comes back even for broken input.
	assert.True(t, tree.RootNode().HasError())
}

func TestParseUnsupportedLanguage(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), types.LanguageHCL, []byte("resource {}"))
	assert.ErrorIs(t, err, ErrNoGrammar)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(types.LanguageGo))
	assert.True(t, Supported(types.LanguagePython))
	assert.False(t, Supported(types.LanguageMarkdown))
	assert.False(t, Supported(types.LanguageUnknown))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    types.Language
	}{
		{"extension wins", "src/main.rs", "", types.LanguageRust},
		{"python shebang", "scripts/deploy", "#!/usr/bin/env python3\nprint()\n", types.LanguagePython},
		{"node shebang", "bin/cli", "#!/usr/bin/env node\n", types.LanguageJavaScript},
		{"no hints", "Makefile", "all:\n", types.LanguageUnknown},
		{"extension beats shebang", "tool.go", "#!/usr/bin/env python\n", types.LanguageGo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path, []byte(tt.content)))
		})
	}
}
