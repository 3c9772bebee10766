package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestKey_Deterministic(t *testing.T) {
	a := Key("openai", "gpt-4o-mini", "prompt text")
	b := Key("openai", "gpt-4o-mini", "prompt text")
	if a != b {
		t.Errorf("Same inputs should yield the same key: %s vs %s", a, b)
	}

	if Key("openai", "gpt-4o-mini", "prompt") == Key("ollama", "gpt-4o-mini", "prompt") {
		t.Error("Provider must be part of the key")
	}
	if Key("openai", "gpt-4o-mini", "prompt") == Key("openai", "gemma3:4b", "prompt") {
		t.Error("Model must be part of the key")
	}
	if Key("openai", "gpt-4o-mini", "prompt a") == Key("openai", "gpt-4o-mini", "prompt b") {
		t.Error("Prompt must be part of the key")
	}
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Hour, time.Hour)

	key := Key("openai", "gpt-4o-mini", "prompt")
	if _, found := c.Get(key); found {
		t.Error("Expected miss on empty cache")
	}

	if err := c.Set(key, []byte(`{"people":[]}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, found := c.Get(key)
	if !found || !bytes.Equal(val, []byte(`{"people":[]}`)) {
		t.Errorf("Get = %q, %v", val, found)
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := c.Get(key); found {
		t.Error("Expected miss after delete")
	}
}

func TestDiskCache_SurvivesNewInstance(t *testing.T) {
	dir := t.TempDir()
	key := Key("openai", "gpt-4o-mini", "prompt")

	c := NewDiskCache(dir, time.Hour)
	if err := c.Set(key, []byte("cached response"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A fresh instance over the same directory sees the entry. This is the
	// cross-process dedup path taken on resume after a crash.
	c2 := NewDiskCache(dir, time.Hour)
	val, found := c2.Get(key)
	if !found || string(val) != "cached response" {
		t.Errorf("Get = %q, %v", val, found)
	}
}

func TestDiskCache_ExpiredEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, -time.Second)

	key := Key("openai", "gpt-4o-mini", "prompt")
	if err := c.Set(key, []byte("stale"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, found := c.Get(key); found {
		t.Error("Expired entry should be a miss")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	key := Key("openai", "gpt-4o-mini", "prompt")

	// Seed only the disk layer, as a previous process would have.
	seed := NewDiskCache(dir, time.Hour)
	if err := seed.Set(key, []byte("from disk"), 0); err != nil {
		t.Fatalf("seed disk: %v", err)
	}

	c := NewLayeredCache(time.Hour, dir, time.Hour)
	val, found := c.Get(key)
	if !found || string(val) != "from disk" {
		t.Fatalf("Get = %q, %v", val, found)
	}

	// The hit is now served from memory even if the disk entry disappears.
	if err := seed.Delete(key); err != nil {
		t.Fatalf("delete disk entry: %v", err)
	}
	val, found = c.Get(key)
	if !found || string(val) != "from disk" {
		t.Errorf("Expected promoted memory hit, got %q, %v", val, found)
	}
}

func TestLayeredCache_SetWritesBothLayers(t *testing.T) {
	dir := t.TempDir()
	key := Key("openai", "gpt-4o-mini", "prompt")

	c := NewLayeredCache(time.Hour, dir, time.Hour)
	if err := c.Set(key, []byte("value"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	disk := NewDiskCache(dir, time.Hour)
	if _, found := disk.Get(key); !found {
		t.Error("Set should persist to the disk layer")
	}
}
