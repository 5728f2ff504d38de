package store

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	// Open already migrated once; a second pass must be a no-op.
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("third Migrate() error: %v", err)
	}
}

func TestCreateKey(t *testing.T) {
	s := newTestStore(t)

	plaintext, rec, err := s.CreateKey("ci")
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}
	if !strings.HasPrefix(plaintext, "sk-") {
		t.Errorf("plaintext %q missing sk- prefix", plaintext)
	}
	if len(plaintext) != 3+64 {
		t.Errorf("plaintext length = %d, want 67", len(plaintext))
	}
	if rec.KeyPrefix != plaintext[:7]+"..." {
		t.Errorf("KeyPrefix = %q", rec.KeyPrefix)
	}
	if rec.Name != "ci" {
		t.Errorf("Name = %q", rec.Name)
	}
	if !rec.IsActive {
		t.Error("new key should be active")
	}
	if rec.UsageCount != 0 {
		t.Errorf("UsageCount = %d, want 0", rec.UsageCount)
	}
}

func TestValidateKey(t *testing.T) {
	s := newTestStore(t)
	plaintext, rec, err := s.CreateKey("")
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}

	got, ok := s.ValidateKey(plaintext)
	if !ok {
		t.Fatal("ValidateKey() rejected a freshly created key")
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if got.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Error("LastUsedAt not set after validation")
	}

	if _, ok := s.ValidateKey("sk-" + strings.Repeat("0", 64)); ok {
		t.Error("ValidateKey() accepted an unknown key")
	}
	if _, ok := s.ValidateKey("not-a-key"); ok {
		t.Error("ValidateKey() accepted a key without sk- prefix")
	}
}

func TestRevokeKey(t *testing.T) {
	s := newTestStore(t)
	plaintext, rec, err := s.CreateKey("temp")
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}

	if err := s.RevokeKey(rec.ID); err != nil {
		t.Fatalf("RevokeKey() error: %v", err)
	}
	if _, ok := s.ValidateKey(plaintext); ok {
		t.Error("ValidateKey() accepted a revoked key")
	}

	keys, err := s.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys() error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("ListKeys() length = %d, want 1", len(keys))
	}
	if keys[0].IsActive {
		t.Error("revoked key still listed as active")
	}

	if err := s.RevokeKey("missing"); err == nil {
		t.Error("RevokeKey() should fail for an unknown id")
	}
}

func TestDeleteKey(t *testing.T) {
	s := newTestStore(t)
	_, rec, err := s.CreateKey("")
	if err != nil {
		t.Fatalf("CreateKey() error: %v", err)
	}

	if err := s.DeleteKey(rec.ID); err != nil {
		t.Fatalf("DeleteKey() error: %v", err)
	}
	keys, err := s.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys() error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("ListKeys() length = %d after delete, want 0", len(keys))
	}

	if err := s.DeleteKey(rec.ID); err == nil {
		t.Error("DeleteKey() should fail for a deleted id")
	}
}

func TestProviderSettingsUpsert(t *testing.T) {
	s := newTestStore(t)

	// First write creates the row.
	if err := s.SetProviderEnabled("groq", false); err != nil {
		t.Fatalf("SetProviderEnabled() error: %v", err)
	}
	// Second write updates it in place.
	if err := s.SetProviderPriority("groq", 5); err != nil {
		t.Fatalf("SetProviderPriority() error: %v", err)
	}
	if err := s.SetProviderPriority("cerebras", 1); err != nil {
		t.Fatalf("SetProviderPriority() error: %v", err)
	}

	settings, err := s.ListProviderSettings()
	if err != nil {
		t.Fatalf("ListProviderSettings() error: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("ListProviderSettings() length = %d, want 2", len(settings))
	}

	byKey := make(map[string]ProviderSetting, len(settings))
	for _, ps := range settings {
		byKey[ps.ProviderKey] = ps
	}
	if ps := byKey["groq"]; ps.IsEnabled || ps.Priority != 5 {
		t.Errorf("groq = {enabled:%v priority:%d}, want {false 5}", ps.IsEnabled, ps.Priority)
	}
	// Rows created by a priority write default to enabled.
	if ps := byKey["cerebras"]; !ps.IsEnabled || ps.Priority != 1 {
		t.Errorf("cerebras = {enabled:%v priority:%d}, want {true 1}", ps.IsEnabled, ps.Priority)
	}
}
