package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"markdown", ModeMarkdown},
		{"json", ModeJSON},
		{"xml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}

	assert.True(t, Valid("json"))
	assert.True(t, Valid(""))
	assert.False(t, Valid("xml"))
}

func TestRenderer_EffectiveMode(t *testing.T) {
	var out, errOut bytes.Buffer

	assert.Equal(t, ModeText, NewRendererWithTTY(&out, &errOut, true, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRendererWithTTY(&out, &errOut, false, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeJSON, NewRendererWithTTY(&out, &errOut, true, ModeJSON).EffectiveMode())

	// a buffer is never a terminal
	assert.False(t, NewRenderer(&out, &errOut, ModeAuto).IsTTY())
}

func TestRenderer_Markdown(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeMarkdown)

	r.Header(2, "Files")
	r.StatusLine("contas_a_pagar", "success", "(3, 2)")
	r.Warning("careful")

	assert.Equal(t, "## Files\n\n- **[SUCCESS]** contas_a_pagar: (3, 2)\n", out.String())
	assert.Equal(t, "Warning: careful\n", errOut.String())
}

func TestRenderer_TextHasNoColorWithoutTTY(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeText)

	r.Success("done")
	assert.Equal(t, "✓ done\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, nil, false, ModeJSON)

	require.NoError(t, r.JSON(map[string]any{"name": "a&b"}))
	assert.Contains(t, out.String(), `"a&b"`)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "a&b", decoded["name"])
}

func TestRenderer_Table(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, nil, false, ModeMarkdown)

	r.Table([]string{"Key", "Tag"}, [][]string{{"prompt1", "Prompt1_Conciso"}})
	assert.Contains(t, out.String(), "| Key | Tag |")
	assert.Contains(t, out.String(), "| prompt1 | Prompt1_Conciso |")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Deep", FormatHeader(3, "Deep"))
	assert.Equal(t, "- **Model**: gpt-4o-mini", FormatKeyValue("Model", "gpt-4o-mini"))
	assert.Equal(t, "Data Directory", Title("data directory"))
}
