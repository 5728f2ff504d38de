package aicarousel

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	content := `
# provider keys
GROQ_API_KEY=gsk_test
export CEREBRAS_API_KEY=csk_test
QUOTED="with spaces"
SINGLE='single quoted'
EMPTY=
malformed line without equals
`
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	for _, key := range []string{"GROQ_API_KEY", "CEREBRAS_API_KEY", "QUOTED", "SINGLE", "EMPTY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error: %v", err)
	}

	cases := map[string]string{
		"GROQ_API_KEY":     "gsk_test",
		"CEREBRAS_API_KEY": "csk_test",
		"QUOTED":           "with spaces",
		"SINGLE":           "single quoted",
		"EMPTY":            "",
	}
	for key, want := range cases {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadEnvFile_DoesNotOverrideProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GROQ_API_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	t.Setenv("GROQ_API_KEY", "from-process")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error: %v", err)
	}
	if got := os.Getenv("GROQ_API_KEY"); got != "from-process" {
		t.Errorf("GROQ_API_KEY = %q, process env must win", got)
	}
}

func TestLoadEnvFile_MissingFileIsFine(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadEnvFile() on missing file: %v", err)
	}
}
