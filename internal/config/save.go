package config

import (
	"os"
	"path/filepath"
)

// SaveAtomic validates s and writes it next to path before swapping it in,
// keeping the previous file as path+".bak".
func SaveAtomic(path string, s Settings) error {
	normalized, vr := NormalizeAndValidate(s)
	if err := vr.Err(); err != nil {
		return err
	}

	b, err := marshal(path, normalized)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}
