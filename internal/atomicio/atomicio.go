// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package atomicio provides atomic file writing.
package atomicio

import (
	"os"
	"path/filepath"
)

// WriteFile writes data to a file atomically. It writes to a temporary file in
// the same directory and renames it over name, so readers never observe a
// partially written file.
func WriteFile(name string, data []byte, perm os.FileMode) (err error) {
	// The temporary file must be on the same filesystem, which is a
	// requirement for an atomic os.Rename.
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		// Clean up the temporary file if something goes wrong.
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Chmod(perm); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), name)
}
