package serve_cmd

import (
	"testing"

	L "mediavault/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	prevLevel := L.GetLogLevel()
	defer L.SetLevel(prevLevel)
	defer L.SetColorMode(L.COLOR_MODE_AUTO)

	require.NoError(t, parseFlags([]string{"-c", "./config.json", "-L", "debug"}))
	require.NotNil(t, serveCmdEnv)
	assert.Equal(t, "./config.json", serveCmdEnv.ConfigPath)
	assert.False(t, serveCmdEnv.NoColor)
	assert.Equal(t, L.DEBUG, L.GetLogLevel())

	require.NoError(t, parseFlags([]string{"-no-color"}))
	assert.True(t, serveCmdEnv.NoColor)

	assert.Error(t, parseFlags([]string{"stray-arg"}))
}
