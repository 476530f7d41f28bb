package archive

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// SanitizeFileName strips directories, control and reserved characters and
// leading dots. The result may be empty.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			continue
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(strings.TrimSpace(b.String()), ".")
}

// ArchiveName returns a safe download name ending in .zip, or a timestamped
// default when requested sanitizes to nothing.
func ArchiveName(requested string, now time.Time) string {
	name := SanitizeFileName(requested)
	if name == "" {
		return "monozip_" + now.Format("20060102_150405") + ".zip"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}
	return name
}

// NameSet hands out unique entry names.
type NameSet struct {
	used    map[string]bool
	unnamed int
}

func NewNameSet() *NameSet { return &NameSet{used: map[string]bool{}} }

// Claim sanitizes name, substitutes file_N for empty names and appends _2,
// _3, ... before the extension on duplicates.
func (s *NameSet) Claim(name string) string {
	name = SanitizeFileName(name)
	if name == "" {
		s.unnamed++
		name = "file_" + strconv.Itoa(s.unnamed)
	}

	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; s.used[strings.ToLower(candidate)]; n++ {
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
	s.used[strings.ToLower(candidate)] = true
	return candidate
}
