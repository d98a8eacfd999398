// Package link redirects the orchestrator's expected source checkout to the
// caller's working tree, so benchmarks run against local code instead of a
// fresh version-controlled checkout.
package link

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benchlabs/localbench/settings"
)

// Redirect replaces the checkout directory the orchestrator expects under
// the settings working directory with a symbolic link to projectRoot, and
// returns the link path. An existing symlink at that path is removed; an
// existing real directory is renamed aside under a backup name, never
// deleted.
func Redirect(
	s *settings.Settings,
	projectRoot string,
	logger *slog.Logger,
) (string, error) {
	workDir, err := s.WorkingDirectory()
	if err != nil {
		return "", err
	}

	repoName, err := s.RepositoryName()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create working directory %s: %w", workDir, err)
	}

	linkPath := filepath.Join(workDir, repoName)

	info, err := os.Lstat(linkPath)

	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		if err := os.Remove(linkPath); err != nil {
			return "", fmt.Errorf("remove stale symlink %s: %w", linkPath, err)
		}

	case err == nil:
		bak := settings.BackupPath(linkPath)
		if err := os.Rename(linkPath, bak); err != nil {
			return "", fmt.Errorf(
				"move existing checkout %s aside: %w", linkPath, err,
			)
		}

		logger.Info("moved existing checkout aside",
			slog.String("from", linkPath),
			slog.String("to", bak),
		)

	case !os.IsNotExist(err):
		return "", fmt.Errorf("inspect link path %s: %w", linkPath, err)
	}

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolve project root %s: %w", projectRoot, err)
	}

	if err := os.Symlink(absRoot, linkPath); err != nil {
		return "", fmt.Errorf(
			"link %s -> %s: %w", linkPath, absRoot, err,
		)
	}

	logger.Info("linked local code",
		slog.String("link", linkPath),
		slog.String("target", absRoot),
	)

	return linkPath, nil
}
