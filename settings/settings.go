// Package settings manages the orchestrator settings file: materializing it
// from a template, gating on local execution mode, and reading the values
// that later setup steps depend on.
package settings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingTemplate reports that the settings template does not exist.
	ErrMissingTemplate = errors.New("settings template not found")

	// ErrNotLocal reports that the materialized settings do not declare
	// local execution. Every later step assumes all testbed endpoints
	// resolve to the operator's machine, so this is checked once, up front.
	ErrNotLocal = errors.New("settings do not declare local execution")

	// ErrMissingField reports that a setting required by the local-code
	// linker is absent from the settings file.
	ErrMissingField = errors.New("required setting missing")
)

// Repository identifies the source the orchestrator deploys.
type Repository struct {
	URL    string `yaml:"url"`
	Commit string `yaml:"commit"`
}

// Settings mirrors the orchestrator's settings file.
type Settings struct {
	TestbedID     string     `yaml:"testbed_id"`
	CloudProvider string     `yaml:"cloud_provider"`
	WorkingDir    string     `yaml:"working_dir"`
	ResultsDir    string     `yaml:"results_dir"`
	LogsDir       string     `yaml:"logs_dir"`
	Repository    Repository `yaml:"repository"`
}

// Load reads and parses the settings file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	return &s, nil
}

// Materialize establishes the working settings file at destPath from the
// template at templatePath. A pre-existing destination is copied to a backup
// name first; it is never silently overwritten. The backup and the overwrite
// are two separate steps, so a crash between them leaves only the backup.
// The materialized file must declare local execution.
func Materialize(templatePath, destPath string) (*Settings, error) {
	if _, err := os.Stat(templatePath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingTemplate, templatePath)
		}

		return nil, fmt.Errorf("stat template %s: %w", templatePath, err)
	}

	if _, err := os.Lstat(destPath); err == nil {
		bak := BackupPath(destPath)
		if err := copyFile(destPath, bak); err != nil {
			return nil, fmt.Errorf("back up settings to %s: %w", bak, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat settings %s: %w", destPath, err)
	}

	if err := copyFile(templatePath, destPath); err != nil {
		return nil, fmt.Errorf("copy template to %s: %w", destPath, err)
	}

	s, err := Load(destPath)
	if err != nil {
		return nil, err
	}

	if s.CloudProvider != "local" {
		return nil, fmt.Errorf(
			"%w: cloud_provider is %q", ErrNotLocal, s.CloudProvider,
		)
	}

	return s, nil
}

// BackupPath returns the backup name for path. An existing backup is never
// overwritten; a timestamped name is chosen instead.
func BackupPath(path string) string {
	bak := path + ".bak"
	if _, err := os.Lstat(bak); err != nil {
		return bak
	}

	return fmt.Sprintf("%s.bak.%d", path, time.Now().UnixNano())
}

// WorkingDirectory returns the expanded working directory the orchestrator
// runs in.
func (s *Settings) WorkingDirectory() (string, error) {
	if s.WorkingDir == "" {
		return "", fmt.Errorf("%w: working_dir", ErrMissingField)
	}

	return ExpandPath(s.WorkingDir)
}

// RepositoryName derives the directory name of the orchestrator's expected
// checkout from the repository URL: the final path segment with any
// source-control suffix stripped. Both https and scp-like git URLs work.
func (s *Settings) RepositoryName() (string, error) {
	if s.Repository.URL == "" {
		return "", fmt.Errorf("%w: repository.url", ErrMissingField)
	}

	seg := strings.TrimRight(s.Repository.URL, "/")
	if i := strings.LastIndexAny(seg, "/:"); i >= 0 {
		seg = seg[i+1:]
	}

	seg = strings.TrimSuffix(seg, ".git")
	if seg == "" {
		return "", fmt.Errorf(
			"%w: repository.url %q has no usable path segment",
			ErrMissingField, s.Repository.URL,
		)
	}

	return seg, nil
}

// ExpandPath substitutes the home-directory and user-name placeholders the
// settings file may use: a leading ~, $HOME/${HOME}, and $USER/${USER}.
// Unknown placeholders are left untouched.
func ExpandPath(p string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	var username string
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	if p == "~" {
		return home, nil
	}

	if strings.HasPrefix(p, "~/") {
		p = filepath.Join(home, p[2:])
	}

	expanded := os.Expand(p, func(key string) string {
		switch key {
		case "HOME":
			return home
		case "USER":
			return username
		}

		return "$" + key
	})

	return expanded, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(
		dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm(),
	)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}
