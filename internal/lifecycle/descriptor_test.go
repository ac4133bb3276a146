package lifecycle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDescriptor_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := RuntimeDescriptor{
		Mode:        "columnar",
		ProjectRoot: "/home/me/project",
		BindHost:    "127.0.0.1",
		Port:        8000,
		PID:         42,
		BaseURL:     "http://127.0.0.1:8000",
	}

	if err := WriteDescriptor(dir, want); err != nil {
		t.Fatalf("WriteDescriptor() failed: %v", err)
	}

	got, ok, err := ReadDescriptor(dir)
	if err != nil || !ok {
		t.Fatalf("ReadDescriptor() = %+v, %v, %v", got, ok, err)
	}
	if got != want {
		t.Errorf("ReadDescriptor() = %+v, want %+v", got, want)
	}
}

func TestDescriptor_ReadMissingReturnsNotOK(t *testing.T) {
	_, ok, err := ReadDescriptor(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("ReadDescriptor() should report ok=false for a directory with no descriptor")
	}
}

func TestDescriptor_RemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDescriptor(dir, RuntimeDescriptor{Port: 1}); err != nil {
		t.Fatal(err)
	}
	if err := RemoveDescriptor(dir); err != nil {
		t.Fatalf("RemoveDescriptor() failed: %v", err)
	}
	if err := RemoveDescriptor(dir); err != nil {
		t.Errorf("second RemoveDescriptor() should not error: %v", err)
	}
}

func TestDescriptor_DiscoverWalksUpToAncestor(t *testing.T) {
	root := t.TempDir()
	stateDir := filepath.Join(root, ".claude", "agent-brain")
	if err := WriteDescriptor(stateDir, RuntimeDescriptor{Port: 9000, ProjectRoot: root}); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok, err := DiscoverDescriptor(nested)
	if err != nil || !ok {
		t.Fatalf("DiscoverDescriptor() = %+v, %v, %v", got, ok, err)
	}
	if got.Port != 9000 {
		t.Errorf("discovered descriptor port = %d, want 9000", got.Port)
	}
}

func TestDescriptor_DiscoverNotFoundReturnsNotOK(t *testing.T) {
	_, ok, err := DiscoverDescriptor(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("DiscoverDescriptor() should report ok=false when no ancestor has a descriptor")
	}
}
