// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package atomicio

import (
	"os"
	"path/filepath"
	"testing"

	"go.osokin.dev/notifier/internal/testutil"
)

func TestWriteFile(t *testing.T) {
	t.Parallel()

	name := filepath.Join(t.TempDir(), "cursor")
	if err := WriteFile(name, []byte("1754044200000"), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(b), "1754044200000")

	fi, err := os.Stat(name)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, fi.Mode().Perm(), os.FileMode(0o600))
}

func TestWriteFileOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	name := filepath.Join(dir, "queue.json")
	if err := os.WriteFile(name, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(name, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(b), "new")

	// No temporary files should survive a successful write.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(entries), 1)
}

func TestWriteFileMissingDir(t *testing.T) {
	t.Parallel()

	err := WriteFile(filepath.Join(t.TempDir(), "nope", "cursor"), []byte("data"), 0o644)
	if err == nil {
		t.Fatal("WriteFile succeeded, want error")
	}
}
