package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ideagrid/orchestrator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c := New(Options{Enabled: true, Dir: dir, TTL: time.Hour})
	require.True(t, c.Enabled())
	return c
}

// P6: cache round-trip.
func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	key := MakeKey(KeyInputs{Prompt: "rate this idea", SchemaName: "Evaluation", Temperature: 0.5})

	data := map[string]interface{}{"score": float64(8), "comment": "solid"}
	resp := model.LLMResponse{Text: "raw", Provider: "mock", Model: "mock-1", TokensUsed: 42}

	require.NoError(t, c.Set(key, data, resp, time.Hour))

	got, gotResp, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.True(t, gotResp.Cached)
	assert.Equal(t, resp.Provider, gotResp.Provider)
	assert.Equal(t, resp.TokensUsed, gotResp.TokensUsed)
}

func TestCacheMiss(t *testing.T) {
	c := newTestCache(t)
	_, _, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := newTestCache(t)
	key := MakeKey(KeyInputs{Prompt: "x"})
	require.NoError(t, c.Set(key, map[string]interface{}{"a": float64(1)}, model.LLMResponse{}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, _, ok := c.Get(key)
	assert.False(t, ok)
}

func TestCacheInvalidTTLFallsBackToDefault(t *testing.T) {
	c := New(Options{Enabled: true, Dir: t.TempDir(), TTL: time.Hour})
	key := MakeKey(KeyInputs{Prompt: "y"})
	require.NoError(t, c.Set(key, map[string]interface{}{"a": float64(1)}, model.LLMResponse{}, -1))
	_, _, ok := c.Get(key)
	assert.True(t, ok)
}

// P7: cache key sensitivity — every listed input changes the key.
func TestMakeKeySensitivity(t *testing.T) {
	base := KeyInputs{
		Prompt:            "topic",
		SchemaName:        "Evaluation",
		SchemaDefinition:  map[string]interface{}{"type": "object"},
		Temperature:       0.5,
		Provider:          "local",
		Model:             "llama3.2",
		SystemInstruction: "respond in kind",
		Images:            []string{"a.png"},
		Files:             []string{"a.pdf"},
		URLs:              []string{"http://example.com"},
	}
	baseKey := MakeKey(base)

	variants := []func(*KeyInputs){
		func(k *KeyInputs) { k.Prompt = "different topic" },
		func(k *KeyInputs) { k.SchemaName = "Advocacy" },
		func(k *KeyInputs) { k.SchemaDefinition = map[string]interface{}{"type": "array"} },
		func(k *KeyInputs) { k.Temperature = 0.9 },
		func(k *KeyInputs) { k.Provider = "remote" },
		func(k *KeyInputs) { k.Model = "gemini-1.5-flash" },
		func(k *KeyInputs) { k.SystemInstruction = "respond differently" },
		func(k *KeyInputs) { k.Images = []string{"b.png"} },
		func(k *KeyInputs) { k.Files = []string{"b.pdf"} },
		func(k *KeyInputs) { k.URLs = []string{"http://example.org"} },
	}

	for i, mutate := range variants {
		variant := base
		mutate(&variant)
		assert.NotEqual(t, baseKey, MakeKey(variant), "variant %d should change the key", i)
	}
}

func TestMakeKeyHashesLongStrings(t *testing.T) {
	long := make([]byte, longStringThreshold+1)
	for i := range long {
		long[i] = 'a'
	}
	key1 := MakeKey(KeyInputs{Prompt: string(long)})
	long2 := append([]byte(nil), long...)
	long2[0] = 'b'
	key2 := MakeKey(KeyInputs{Prompt: string(long2)})
	// Differ only in the first byte of a >10KB prompt: still hashed
	// differently because the hash covers the whole string.
	assert.NotEqual(t, key1, key2)
}

// P13: cache path safety — /etc/shadow must never be created under.
func TestCachePathSafetyWhitelist(t *testing.T) {
	c := New(Options{Enabled: true, Dir: "/etc/shadow-ideaspark-test"})
	assert.NotEqual(t, "/etc/shadow-ideaspark-test", c.dir)
	_, err := os.Stat("/etc/shadow-ideaspark-test")
	assert.True(t, os.IsNotExist(err))
	_ = c.Clear()
}

func TestCacheAllowsDirUnderCWD(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	sub := filepath.Join(cwd, "testdata-cache-dir")
	defer os.RemoveAll(sub)

	c := New(Options{Enabled: true, Dir: sub})
	assert.Equal(t, sub, c.dir)
}

func TestDisabledCacheIsNoOp(t *testing.T) {
	c := New(Options{Enabled: false})
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Set("k", map[string]interface{}{"a": float64(1)}, model.LLMResponse{}, time.Hour))
	_, _, ok := c.Get("k")
	assert.False(t, ok)
	assert.False(t, c.Invalidate("k"))
	assert.NoError(t, c.Clear())
	assert.Equal(t, map[string]interface{}{"enabled": false}, c.Stats())
}

func TestCacheClearRemovesEntries(t *testing.T) {
	c := newTestCache(t)
	key := MakeKey(KeyInputs{Prompt: "z"})
	require.NoError(t, c.Set(key, map[string]interface{}{"a": float64(1)}, model.LLMResponse{}, time.Hour))
	require.NoError(t, c.Clear())
	_, _, ok := c.Get(key)
	assert.False(t, ok)
}

func TestSingletonDoubleCheckedLocking(t *testing.T) {
	ResetSingleton()
	defer ResetSingleton()

	c1 := GetSingleton(Options{Enabled: true, Dir: t.TempDir()})
	c2 := GetSingleton(Options{Enabled: true, Dir: t.TempDir()})
	assert.Same(t, c1, c2)
}
