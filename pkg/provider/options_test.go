package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOptions(t *testing.T) {
	var opts CommonOptions
	err := DecodeOptions(map[string]any{
		"organization": "org-123",
		"headers":      map[string]any{"X-Title": "ledgerlens"},
	}, &opts)

	require.NoError(t, err)
	assert.Equal(t, "org-123", opts.Organization)
	assert.Equal(t, "ledgerlens", opts.Headers["X-Title"])
}

func TestDecodeOptions_Empty(t *testing.T) {
	var opts CommonOptions
	require.NoError(t, DecodeOptions(nil, &opts))
	assert.Empty(t, opts.Organization)
}

func TestDecodeOptions_UnknownKey(t *testing.T) {
	var opts CommonOptions
	err := DecodeOptions(map[string]any{"organisation": "typo"}, &opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding provider options")
}
