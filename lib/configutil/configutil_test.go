package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json")

	err := os.WriteFile(base, []byte(`{"name": "default", "port": 8000}`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json"), []byte(`{"port": 9000}`), 0644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, testConfig{Name: "default", Port: 9000}, cfg)
}

func TestWriteConfigRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := testConfig{Name: "roundtrip", Port: 1234}

	err := WriteConfig(path, want)
	require.NoError(t, err)

	got, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
