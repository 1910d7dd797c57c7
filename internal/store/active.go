package store

import (
	"strings"
)

// activePointerOperation names the lock acquired while reading or writing
// the active pointer artifact (see Guard/Acquire).
const activePointerOperation = "active-pointer"

// readActivePointer returns the id stored at path, or ("", false) if the
// file is absent. Absence is not an error: it denotes "no active ticket".
func (a *ArtifactStore) readActivePointer(path string) (string, bool, error) {
	exists, err := a.Exists(path)
	if err != nil {
		return "", false, err
	}

	if !exists {
		return "", false, nil
	}

	data, err := a.Read(path)
	if err != nil {
		return "", false, err
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false, nil
	}

	return id, true, nil
}

// writeActivePointer durably stores id as the active pointer at path: one
// id, no surrounding whitespace.
func (a *ArtifactStore) writeActivePointer(path, id string) error {
	return a.Write(path, []byte(id))
}

// clearActivePointer removes the active pointer artifact at path, if any.
func (a *ArtifactStore) clearActivePointer(path string) error {
	return a.Remove(path)
}
