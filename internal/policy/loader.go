package policy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// RuleFile is a loaded Rego source file.
type RuleFile struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Loader scans a directory for .rego rule files.
// Use afero.NewMemMapFs() in tests.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a new rule loader rooted at baseDir.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{fs: fs, baseDir: baseDir}
}

// LoadAll loads every .rego file under the base directory, recursively.
// A missing directory means no rules.
func (l *Loader) LoadAll() ([]*RuleFile, error) {
	if l.baseDir == "" {
		return nil, nil
	}
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check rules directory: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var rules []*RuleFile
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		rule, err := l.loadFile(path)
		if err != nil {
			return fmt.Errorf("load rule %s: %w", path, err)
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rules directory: %w", err)
	}
	return rules, nil
}

func (l *Loader) loadFile(path string) (*RuleFile, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &RuleFile{
		Path:    path,
		Name:    strings.TrimSuffix(filepath.Base(path), ".rego"),
		Content: string(content),
	}, nil
}
