package watch

import (
	"path/filepath"
)

// PatternFilter accepts paths by base-name glob.
type PatternFilter struct {
	Include []string
	Exclude []string
}

// ForFile accepts the file at path and the journal files SQLite keeps next
// to it. Temporary files from atomic rewrites are ignored.
func ForFile(path string) *PatternFilter {
	base := filepath.Base(path)
	return &PatternFilter{
		Include: []string{base, base + "-wal", base + "-journal"},
		Exclude: []string{"*.tmp"},
	}
}

// Matches reports whether path passes. Excludes win over includes, and an
// empty include list accepts everything.
func (f *PatternFilter) Matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range f.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
