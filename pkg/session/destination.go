package session

import (
	"os"
	"path/filepath"
)

// DefaultDestination is the user's Documents folder when there is one,
// the home directory otherwise, and the working directory as a last
// resort.
func DefaultDestination() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	docs := filepath.Join(home, "Documents")
	if st, err := os.Stat(docs); err == nil && st.IsDir() {
		return docs
	}
	return home
}
