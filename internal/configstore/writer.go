package configstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ferralux/myhome-core/internal/discovery"
)

// Result reports what Apply did with a device.
type Result int

const (
	// ResultAdded means a new entry was written to the document.
	ResultAdded Result = iota

	// ResultAlreadyPresent means the address was already configured and
	// nothing was touched, including user edits to the existing entry.
	ResultAlreadyPresent
)

func (r Result) String() string {
	if r == ResultAdded {
		return "added"
	}
	return "already_present"
}

// fileMode keeps the document private; it can hold addresses of alarm
// zones and the like.
const fileMode = 0o600

// Writer merges discovered devices into the YAML config document.
//
// The document is keyed gateway MAC -> platform -> device key. Writes
// are idempotent per (gateway, platform, where), diff-minimal (only the
// added entry changes, comments and unrelated keys survive) and atomic
// (temp file + fsync + rename), so a crash mid-write never corrupts the
// document.
//
// Thread Safety: all writes are serialized on an internal mutex. One
// Writer per document path; two Writers on the same path would race on
// the read-modify-write cycle.
type Writer struct {
	path   string
	logger discovery.Logger

	// onReload, when set, is called after every successful write with
	// the gateway whose section changed.
	onReload func(gateway string)

	mu sync.Mutex
}

// NewWriter creates a writer for the document at path. The file does
// not need to exist yet.
func NewWriter(path string, logger discovery.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// SetReloadFunc registers the host's reload signal. The writer only
// reports that the document changed; the reload lifecycle is the
// host's.
func (w *Writer) SetReloadFunc(fn func(gateway string)) {
	w.onReload = fn
}

// Path returns the document location.
func (w *Writer) Path() string {
	return w.path
}

// Apply merges one discovered device into the document.
//
// Returns:
//   - Result: ResultAdded or ResultAlreadyPresent
//   - error: document read/parse/write failures
func (w *Writer) Apply(ctx context.Context, d discovery.DiscoveredDevice) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ResultAlreadyPresent, err
	}

	doc, err := w.load()
	if err != nil {
		return ResultAlreadyPresent, err
	}
	root := doc.Content[0]

	gateway, err := ensureChild(root, d.Gateway)
	if err != nil {
		return ResultAlreadyPresent, err
	}
	platform, err := ensureChild(gateway, d.Category.Platform())
	if err != nil {
		return ResultAlreadyPresent, err
	}

	where := d.Where.String()
	if hasDeviceWithWhere(platform, where) {
		w.logDebug("device already configured", "gateway", d.Gateway, "where", where)
		return ResultAlreadyPresent, nil
	}

	key := DeviceKey(d.Category, d.Where, childKeys(platform))
	platform.Content = append(platform.Content, scalarNode(key), deviceNode(d.SuggestedConfig()))

	if err := w.store(doc); err != nil {
		return ResultAlreadyPresent, err
	}

	w.logInfo("device written to config",
		"gateway", d.Gateway, "platform", d.Category.Platform(), "key", key, "where", where)

	if w.onReload != nil {
		w.onReload(d.Gateway)
	}
	return ResultAdded, nil
}

// Remove deletes one device entry.
//
// Returns:
//   - error: ErrNotFound when the gateway, platform or key is absent
func (w *Writer) Remove(ctx context.Context, gatewayID, platformName, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := w.load()
	if err != nil {
		return err
	}
	root := doc.Content[0]

	gateway := findChild(root, gatewayID)
	if gateway == nil {
		return fmt.Errorf("%w: gateway %s", ErrNotFound, gatewayID)
	}
	platform := findChild(gateway, platformName)
	if platform == nil {
		return fmt.Errorf("%w: platform %s", ErrNotFound, platformName)
	}
	if !removeChild(platform, key) {
		return fmt.Errorf("%w: %s/%s/%s", ErrNotFound, gatewayID, platformName, key)
	}

	if err := w.store(doc); err != nil {
		return err
	}

	w.logInfo("device removed from config", "gateway", gatewayID, "key", key)
	if w.onReload != nil {
		w.onReload(gatewayID)
	}
	return nil
}

// load reads and parses the document. A missing file is an empty
// document, not an error.
func (w *Writer) load() (*yaml.Node, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return parseDocument(nil)
		}
		return nil, fmt.Errorf("reading config document: %w", err)
	}
	return parseDocument(data)
}

// store writes the document atomically: marshal to a temp file in the
// same directory, fsync, rename over the original.
func (w *Writer) store(doc *yaml.Node) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding config document: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp document: %w", err)
	}
	tmpName := tmp.Name()

	// Any failure from here on removes the temp file; the original
	// document is never touched until the rename.
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp document: %w", err)
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting document mode: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing config document: %w", err)
	}
	return nil
}

func (w *Writer) logDebug(msg string, keysAndValues ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, keysAndValues...)
	}
}

func (w *Writer) logInfo(msg string, keysAndValues ...any) {
	if w.logger != nil {
		w.logger.Info(msg, keysAndValues...)
	}
}
