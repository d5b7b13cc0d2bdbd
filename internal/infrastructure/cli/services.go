package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/wiring"
)

// serviceOptions is replaced in tests.
var serviceOptions = wiring.Options{}

func loadServices(root string) (*wiring.AppServices, error) {
	services, err := wiring.BuildAppServices(root, configPath, serviceOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}
	return services, nil
}

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid project path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("project path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("project path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

func loadServicesForCurrentDir() (*wiring.AppServices, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	return loadServices(root)
}

// currentUser resolves --user, then $USER.
func currentUser() string {
	if userFlag != "" {
		return userFlag
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}
