package lua

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resources.lua")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadManifest_DeclaresResources(t *testing.T) {
	t.Setenv("TEST_SRP", "SRP_2")
	path := writeScript(t, `
local uni = require("uni")
local log = require("log")

uni.symm_id("000197900123")

for i = 1, 2 do
  uni.host{ name = "host0" .. i, initiators = { "1000000C900ABCD" .. i }, state = "present" }
end

uni.host{ name = "old_host", state = "absent" }
uni.storage_group{ name = "app_sg", srp = uni.env("TEST_SRP", "SRP_1"), emulation = "FBA", state = "present" }

log.info("declared", { hosts = 3 })
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "000197900123", m.SymmID)
	require.Len(t, m.Hosts, 3)
	assert.Equal(t, "host01", m.Hosts[0].Name)
	assert.Equal(t, []string{"1000000C900ABCD1"}, m.Hosts[0].Initiators)
	assert.Equal(t, "absent", m.Hosts[2].State)
	require.Len(t, m.StorageGroups, 1)
	assert.Equal(t, "SRP_2", m.StorageGroups[0].SRP)
}

func TestLoadManifest_EnvDefault(t *testing.T) {
	path := writeScript(t, `
local uni = require("uni")
uni.storage_group{ name = "sg", srp = uni.env("UNICTL_TEST_UNSET_VAR", "SRP_1"), state = "absent" }
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "SRP_1", m.StorageGroups[0].SRP)
}

func TestLoadManifest_SingleInitiatorString(t *testing.T) {
	path := writeScript(t, `
require("uni").host{ name = "host01", initiators = "1000000C900ABCDE", state = "present" }
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1000000C900ABCDE"}, m.Hosts[0].Initiators)
}

func TestLoadManifest_ValidationError(t *testing.T) {
	path := writeScript(t, `
require("uni").host{ name = "host01", state = "present" }
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error")
}

func TestLoadManifest_TypeError(t *testing.T) {
	path := writeScript(t, `
require("uni").host{ name = 42, state = "present" }
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must be a string")
}

func TestLoadManifest_SyntaxError(t *testing.T) {
	path := writeScript(t, `uni.host{`)

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute Lua manifest")
}
