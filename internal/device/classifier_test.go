package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Standalone(t *testing.T) {
	c := NewClassifier("ua-scanner", "xray")

	assert.True(t, c.Standalone("ua-scanner"))
	assert.True(t, c.Standalone("xray"))
	assert.False(t, c.Standalone("chem"))
	assert.False(t, c.Standalone(""))
}

func TestClassifier_NilGroupsEverything(t *testing.T) {
	var c *Classifier
	assert.False(t, c.Standalone("ua-scanner"))
	assert.False(t, c.Standalone("chem"))
}

func TestParseClassifier(t *testing.T) {
	c, err := ParseClassifier([]byte("standalone_devices:\n  - ua-scanner\n  - ecg-printer\n"))
	require.NoError(t, err)

	assert.True(t, c.Standalone("ua-scanner"))
	assert.True(t, c.Standalone("ecg-printer"))
	assert.False(t, c.Standalone("chem"))
}

func TestParseClassifier_EmptyConfig(t *testing.T) {
	c, err := ParseClassifier([]byte(""))
	require.NoError(t, err)
	assert.False(t, c.Standalone("anything"))
}

func TestParseClassifier_BadYAML(t *testing.T) {
	_, err := ParseClassifier([]byte("standalone_devices: {not: [a, list"))
	assert.Error(t, err)
}

func TestLoadClassifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("standalone_devices: [ua-scanner]\n"), 0o644))

	c, err := LoadClassifier(path)
	require.NoError(t, err)
	assert.True(t, c.Standalone("ua-scanner"))

	_, err = LoadClassifier(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
