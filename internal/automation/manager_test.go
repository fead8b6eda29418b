//go:build !no_automation

package automation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "scripts"), testLogger())
	require.NoError(t, err)
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, scripts)
}

func TestManagerSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		Meta:    ScriptMeta{Name: "Remote to Kitchen", Description: "bind on join", Enabled: true},
		LuaCode: `zha.log("hello")`,
	})
	require.NoError(t, err)
	assert.Equal(t, "remote_to_kitchen", saved.ID)

	got, err := m.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Meta, got.Meta)
	assert.Equal(t, "zha.log(\"hello\")\n", got.LuaCode)

	data, err := os.ReadFile(saved.FilePath)
	require.NoError(t, err)
	assert.Equal(t, `-- {"name":"Remote to Kitchen","description":"bind on join","enabled":true}`+"\n\nzha.log(\"hello\")\n", string(data))
}

func TestManagerUniqueIDs(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 3; i++ {
		_, err := m.Save(&Script{Meta: ScriptMeta{Name: "Lights"}})
		require.NoError(t, err)
	}

	scripts, err := m.List()
	require.NoError(t, err)
	var ids []string
	for _, s := range scripts {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"lights", "lights_1", "lights_2"}, ids)
}

func TestManagerPlainLuaFile(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "plain.lua"), []byte("zha.log('x')\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "notes.txt"), []byte("ignored"), 0o644))

	scripts, err := m.List()
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "plain", scripts[0].Meta.Name)
	assert.True(t, scripts[0].Meta.Enabled)
	assert.Equal(t, "zha.log('x')\n", scripts[0].LuaCode)
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)
	saved, err := m.Save(&Script{Meta: ScriptMeta{Name: "gone"}})
	require.NoError(t, err)

	require.NoError(t, m.Delete(saved.ID))
	_, err = m.Get(saved.ID)
	assert.ErrorIs(t, err, ErrScriptNotFound)
	assert.ErrorIs(t, m.Delete(saved.ID), ErrScriptNotFound)
}

func TestManagerRejectsUnsafeIDs(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"", ".", "..", "../etc/passwd", "a/b", `a\b`} {
		_, err := m.Get(id)
		assert.Error(t, err, id)
		assert.Error(t, m.Delete(id), id)
	}
	_, err := m.Save(&Script{ID: "../escape"})
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Hello World", "hello_world"},
		{"  trim me  ", "trim_me"},
		{"ÄÖÜ", ""},
		{"a--b__c", "a_b_c"},
		{"0123456789012345678901234567890123456789xyz", "0123456789012345678901234567890123456789"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}
