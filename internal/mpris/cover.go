//go:build linux

package mpris

import (
	"os"
	"path/filepath"
	"strings"
)

// artStems lists common album art basenames in priority order. Any of
// the usual image extensions qualifies, matched case-insensitively.
var artStems = []string{"cover", "folder", "album", "front"}

var artExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// FindAlbumArt returns the path of album art stored beside the track,
// or empty string when there is none.
func FindAlbumArt(trackPath string) string {
	dir := filepath.Dir(trackPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	found := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		if !artExts[ext] {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		if _, ok := found[stem]; !ok {
			found[stem] = e.Name()
		}
	}

	for _, stem := range artStems {
		if name, ok := found[stem]; ok {
			return filepath.Join(dir, name)
		}
	}
	return ""
}
