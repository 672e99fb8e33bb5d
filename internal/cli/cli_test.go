package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/layer-3/wide/adapters/tokenizer"
	"github.com/layer-3/wide/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		outputFormat = "text"
		configFile = ""
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenerateKeys(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	integrityKey, err := eth.ParsePrivateKey(keys.IntegrityPrivateKey)
	require.NoError(t, err)
	assert.Equal(t, keys.IntegrityAddress, eth.NewKeySigner(integrityKey).Address().Hex())

	_, err = tokenizer.ParseKey(keys.SessionSigningKey)
	require.NoError(t, err)
}

func TestKeygenCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "keygen")
		require.NoError(t, err)
		assert.Contains(t, out, "integrity.private_key: 0x")
		assert.Contains(t, out, "session.signing_key:")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "keygen", "-o", "json")
		require.NoError(t, err)

		var keys GeneratedKeys
		require.NoError(t, json.Unmarshal([]byte(out), &keys))
		assert.True(t, strings.HasPrefix(keys.IntegrityAddress, "0x"))
		assert.NotEmpty(t, keys.SessionSigningKey)
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wide version "+Version)

	out, err = execute(t, "version", "--output", "json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, GitCommit, info["commit"])
}

func TestServeRejectsMissingConfig(t *testing.T) {
	_, err := execute(t, "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
