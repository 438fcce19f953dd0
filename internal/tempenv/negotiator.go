// Package tempenv picks a sync-safe scratch directory for the companion and
// exports it through the process environment so spawned children inherit it.
//
// The companion's packaging runtime churns large temp files. Cloud-synced
// folders lock those files mid-rename and eat storage quota, so a Documents
// folder under a sync provider is never used.
package tempenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"mlauncher/internal/launcherr"
)

// Location says which candidate directory was chosen.
type Location int

const (
	// LocationDocuments is the per-user folder under Documents.
	LocationDocuments Location = iota + 1
	// LocationSystemTemp is <system temp>/<product>.
	LocationSystemTemp
)

func (l Location) String() string {
	switch l {
	case LocationDocuments:
		return "documents"
	case LocationSystemTemp:
		return "system-temp"
	default:
		return "unknown"
	}
}

// Choice is the outcome of a successful negotiation.
type Choice struct {
	Location Location
	Path     string
}

// processTempDir is the system temp directory as seen before this process
// rewrote TEMP/TMP. os.TempDir on windows follows those variables, so a second
// launch would otherwise treat the previous choice as "system temp".
var processTempDir = os.TempDir()

// Options are the policy inputs of a negotiation.
type Options struct {
	Product string
	// DocumentsSubpath is relative to Documents, e.g. My Games/<product>/data/tmp.
	DocumentsSubpath string
	SyncTokens       []string
	EnvVars          []string
}

// Negotiator implements the directory choice.
type Negotiator struct {
	opts         Options
	fs           afero.Fs
	documentsDir func() (string, error)
	systemTemp   func() (string, error)
	setenv       func(key, value string) error
	log          *zerolog.Logger
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithFs replaces the filesystem used for directory creation.
func WithFs(fs afero.Fs) Option {
	return func(n *Negotiator) { n.fs = fs }
}

// WithDocumentsDir replaces the Documents folder lookup.
func WithDocumentsDir(fn func() (string, error)) Option {
	return func(n *Negotiator) { n.documentsDir = fn }
}

// WithSystemTemp replaces the system temp lookup.
func WithSystemTemp(fn func() (string, error)) Option {
	return func(n *Negotiator) { n.systemTemp = fn }
}

// WithSetenv replaces os.Setenv.
func WithSetenv(fn func(key, value string) error) Option {
	return func(n *Negotiator) { n.setenv = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zerolog.Logger) Option {
	return func(n *Negotiator) {
		if log != nil {
			n.log = log
		}
	}
}

// New returns a Negotiator using the real filesystem and environment.
func New(opts Options, options ...Option) *Negotiator {
	nop := zerolog.Nop()
	n := &Negotiator{
		opts:         opts,
		fs:           afero.NewOsFs(),
		documentsDir: DocumentsDir,
		systemTemp:   SystemTempDir,
		setenv:       os.Setenv,
		log:          &nop,
	}
	for _, o := range options {
		o(n)
	}
	if len(n.opts.EnvVars) == 0 {
		n.opts.EnvVars = []string{"TEMP", "TMP"}
	}
	if n.opts.DocumentsSubpath == "" {
		n.opts.DocumentsSubpath = filepath.Join("My Games", n.opts.Product, "data", "tmp")
	}
	return n
}

// SystemTempDir returns the temp directory captured at process start.
func SystemTempDir() (string, error) {
	if processTempDir == "" {
		return "", os.ErrNotExist
	}
	return processTempDir, nil
}

// IsSynced reports whether path contains one of the sync tokens. Matching is
// case-insensitive because the paths it guards are windows paths.
func IsSynced(path string, tokens []string) bool {
	lower := strings.ToLower(path)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

// Prepare chooses the scratch directory, creates it and exports it. Nothing is
// exported unless a directory was created.
func (n *Negotiator) Prepare() (Choice, error) {
	docs, err := n.documentsDir()
	if err != nil {
		return Choice{}, launcherr.New(launcherr.KindEnvQuery, "query documents folder", err)
	}

	choice, ok := n.tryDocuments(docs)
	if !ok {
		choice, err = n.systemFallback()
		if err != nil {
			return Choice{}, err
		}
	}

	n.log.Info().Str("path", choice.Path).Stringer("location", choice.Location).Msg("companion temp files location")

	for _, key := range n.opts.EnvVars {
		if err := n.setenv(key, choice.Path); err != nil {
			return Choice{}, launcherr.New(launcherr.KindEnvSet, "set "+key, err).WithPath(choice.Path)
		}
	}
	return choice, nil
}

func (n *Negotiator) tryDocuments(docs string) (Choice, bool) {
	if IsSynced(docs, n.opts.SyncTokens) {
		n.log.Info().Str("documents", docs).Msg("cloud-synced documents folder detected, using system temp")
		return Choice{}, false
	}

	path := filepath.Join(docs, n.opts.DocumentsSubpath)
	if err := n.fs.MkdirAll(path, 0o755); err != nil {
		n.log.Warn().Err(err).Str("path", path).Msg("failed to create documents temp dir, falling back to system temp")
		return Choice{}, false
	}
	return Choice{Location: LocationDocuments, Path: path}, true
}

func (n *Negotiator) systemFallback() (Choice, error) {
	tmp, err := n.systemTemp()
	if err != nil || tmp == "" {
		return Choice{}, launcherr.New(launcherr.KindEnvQuery, "query system temp dir", err)
	}

	path := filepath.Join(tmp, n.opts.Product)
	if err := n.fs.MkdirAll(path, 0o755); err != nil {
		return Choice{}, launcherr.New(launcherr.KindFatalTempSetup, "create fallback dir", err).WithPath(path)
	}
	return Choice{Location: LocationSystemTemp, Path: path}, nil
}
