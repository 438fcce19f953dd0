// Package pathres locates the launcher's own module on disk and derives the
// directories the companion layout is anchored to.
package pathres

import (
	"fmt"
	"path/filepath"

	"mlauncher/internal/launcherr"
)

// Locator returns the absolute path of the running launcher module.
type Locator func() (string, error)

// Resolver derives directories from the module path. The module path is
// queried again on every call and never cached.
type Resolver struct {
	locate       Locator
	pluginLevels int
	rootLevels   int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocator replaces the OS module lookup, mainly for tests.
func WithLocator(fn Locator) Option {
	return func(r *Resolver) {
		r.locate = fn
	}
}

// WithLevels overrides how far the plugin and root directories sit above the module file.
func WithLevels(plugin, root int) Option {
	return func(r *Resolver) {
		r.pluginLevels = plugin
		r.rootLevels = root
	}
}

// New returns a Resolver backed by the OS loader.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		locate:       ModulePath,
		pluginLevels: 1,
		rootLevels:   4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModulePath returns the module file path.
func (r *Resolver) ModulePath() (string, error) {
	path, err := r.locate()
	if err != nil {
		return "", launcherr.New(launcherr.KindResolution, "locate module", err)
	}
	if path == "" {
		return "", launcherr.New(launcherr.KindResolution, "locate module", fmt.Errorf("empty module path"))
	}
	return filepath.Clean(path), nil
}

// AncestorDirectory walks up levels steps from the module file. Zero returns the
// module file itself, one its containing directory.
func (r *Resolver) AncestorDirectory(levels int) (string, error) {
	if levels < 0 {
		return "", launcherr.New(launcherr.KindResolution, "ancestor directory", fmt.Errorf("negative levels %d", levels))
	}
	path, err := r.ModulePath()
	if err != nil {
		return "", err
	}
	return Ancestor(path, levels), nil
}

// PluginDirectory is the directory holding the launcher module.
func (r *Resolver) PluginDirectory() (string, error) {
	return r.AncestorDirectory(r.pluginLevels)
}

// RootDirectory is the top-level installation directory.
func (r *Resolver) RootDirectory() (string, error) {
	return r.AncestorDirectory(r.rootLevels)
}

// TargetExecutable returns <plugin dir>/<subpath>/<exe>.
func (r *Resolver) TargetExecutable(subpath, exe string) (string, error) {
	dir, err := r.PluginDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(subpath), exe), nil
}

// Ancestor strips levels trailing components from path. Once the filesystem
// root (or volume root) is reached further steps return the root unchanged.
func Ancestor(path string, levels int) string {
	for i := 0; i < levels; i++ {
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	return path
}
