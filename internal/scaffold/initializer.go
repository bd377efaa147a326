// Package scaffold creates the files a project needs to run romp.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/romp/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// ledgerIgnore is the .gitignore line that keeps the local run ledger out of Git.
const ledgerIgnore = ".romp/"

// CheckExisting returns an error if dir already has a romp.yml.
func CheckExisting(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.DefaultPath)); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'romp init --force' to overwrite it", config.DefaultPath)
	}
	return nil
}

// Initialize writes romp.yml into dir and adds the ledger directory to
// .gitignore. With force an existing romp.yml is overwritten. It returns the
// paths it created or changed.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	tmpl, err := templatesFS.ReadFile("templates/romp.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read romp.yml template: %w", err)
	}

	configPath := filepath.Join(dir, config.DefaultPath)
	if err := os.WriteFile(configPath, tmpl, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", config.DefaultPath, err)
	}
	if _, err := config.Load(configPath); err != nil {
		return nil, fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}
	changed := []string{config.DefaultPath}

	added, err := ensureIgnored(filepath.Join(dir, ".gitignore"), ledgerIgnore)
	if err != nil {
		return nil, err
	}
	if added {
		changed = append(changed, ".gitignore")
	}
	return changed, nil
}

// ensureIgnored appends line to the .gitignore at path unless it is already there.
func ensureIgnored(path, line string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	for _, l := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(l) == line {
			return false, nil
		}
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(line + "\n")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return false, fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return true, nil
}
