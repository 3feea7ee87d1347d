package output

import (
	"path/filepath"
	"strings"
)

// targetExt maps CUDA source extensions to the names migrated files get.
var targetExt = map[string]string{
	".cu":  ".dp.cpp",
	".cuh": ".dp.hpp",
}

// TargetPath returns the name a migrated file is written under. Files with
// other extensions keep their name.
func TargetPath(path string) string {
	ext := filepath.Ext(path)
	if to, ok := targetExt[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(path, ext) + to
	}
	return path
}
