// Package resources locates files packaged alongside the service binary,
// such as connection profiles and file-system wallets.
package resources

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Loader resolves resource names relative to a root directory.
type Loader struct {
	root string
}

func NewLoader(root string) *Loader {
	return &Loader{root: filepath.Clean(root)}
}

func (l *Loader) Root() string { return l.root }

// Resolve returns the path of the named resource. The resource must exist and
// must not escape the root.
func (l *Loader) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("resource name is empty")
	}
	if filepath.IsAbs(name) {
		return "", errors.Errorf("resource [%s] must be relative to the resource root", name)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("resource [%s] escapes the resource root", name)
	}

	path := filepath.Join(l.root, clean)
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "resource [%s] not found under [%s]", name, l.root)
	}
	return path, nil
}

// ReadFile returns the contents of the named resource.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading resource [%s]", name)
	}
	return data, nil
}
