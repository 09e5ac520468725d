package detector

import (
	"os"
	"path/filepath"
	"strings"
)

// ServiceScript is the landmark service looked up by FindLandmarkService.
const ServiceScript = "landmark_service.py"

// FindLandmarkService returns a command line running ServiceScript, or "" when
// the script is not found. It checks scripts/ relative to the working
// directory, the executable and each of dirs, and prefers a venv Python
// found in the same places. Paths containing spaces are skipped; pass those
// through --landmark-service.
func FindLandmarkService(dirs ...string) string {
	script := findFirst(searchPaths(filepath.Join("scripts", ServiceScript), dirs))
	if script == "" {
		return ""
	}

	python := findFirst(searchPaths(filepath.Join("venv", "bin", "python"), dirs))
	if python == "" {
		python = "python3"
	}
	return python + " " + script
}

func searchPaths(rel string, dirs []string) []string {
	candidates := []string{rel, filepath.Join("..", rel), filepath.Join("..", "..", rel)}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), rel))
	}
	for _, d := range dirs {
		candidates = append(candidates, filepath.Join(d, rel))
	}
	return candidates
}

func findFirst(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if strings.ContainsAny(path, " \t") {
			continue
		}
		return path
	}
	return ""
}
