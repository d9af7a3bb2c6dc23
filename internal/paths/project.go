// Package paths resolves the project a conversation belongs to.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// ProjectRoot returns the directory conversations started in dir are filed
// under: the nearest ancestor holding a .claudecode directory or a .git
// entry. Linked git worktrees resolve to their main checkout so every
// worktree of a repository shares one history. When no marker is found the
// cleaned absolute dir is returned.
//
//   - "/src/app/internal/x" with /src/app/.git -> "/src/app"
//   - "/src/app-wt" with .git file "gitdir: /src/app/.git/worktrees/wt" -> "/src/app"
//   - "" -> current working directory
func ProjectRoot(dir string) string {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}

	for cur := abs; ; {
		if isDir(filepath.Join(cur, ".claudecode")) {
			return cur
		}
		if root, ok := gitRoot(cur); ok {
			return root
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs
		}
		cur = parent
	}
}

// gitRoot reports whether dir is the top of a git checkout, following the
// gitdir pointer of a linked worktree back to the main checkout.
func gitRoot(dir string) (string, bool) {
	gitPath := filepath.Join(dir, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return dir, true
	}
	if main := followGitdir(dir, gitPath); main != "" {
		return main, true
	}
	return dir, true
}

// followGitdir reads a worktree's .git file and returns the main checkout,
// or "" when the file is not a worktree pointer.
func followGitdir(dir, gitFile string) string {
	content, err := os.ReadFile(gitFile) //nolint:gosec // .git file inside the checked directory
	if err != nil {
		return ""
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(content)), "gitdir:")
	if !ok {
		return ""
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	target = filepath.Clean(target)

	// <main>/.git/worktrees/<name>
	worktrees := filepath.Dir(target)
	if filepath.Base(worktrees) != "worktrees" {
		return ""
	}
	gitDir := filepath.Dir(worktrees)
	if filepath.Base(gitDir) != ".git" {
		return ""
	}
	return filepath.Dir(gitDir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
