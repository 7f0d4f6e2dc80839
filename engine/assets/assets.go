package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/livewall/engine/assets/loaders"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrClosed        = errors.New("asset manager closed")
)

// subscriberBuffer is the number of change events a slow subscriber may
// fall behind before events are dropped for it.
const subscriberBuffer = 16

type AssetInfo struct {
	// Name is the file name without directory and extension.
	Name string
	// Path is relative to the asset root, slash separated.
	Path    string
	Type    metadata.ResourceType
	ModTime time.Time
}

type Op uint8

const (
	OpCreated Op = iota
	OpModified
	OpRemoved
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRemoved:
		return "removed"
	}
	return "unknown"
}

// Event describes a change of an indexed asset.
type Event struct {
	Asset AssetInfo
	Op    Op
}

// AssetManager indexes every file below a root directory and keeps the
// index current through a recursive fsnotify watch.
type AssetManager struct {
	root    string
	loaders map[metadata.ResourceType]Loader

	mu     sync.RWMutex
	assets map[string]AssetInfo

	subsMu      sync.Mutex
	subscribers map[int]chan Event
	nextSub     int

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewAssetManager(root string) (*AssetManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("asset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", abs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	am := &AssetManager{
		root:        abs,
		loaders:     make(map[metadata.ResourceType]Loader),
		assets:      make(map[string]AssetInfo),
		subscribers: make(map[int]chan Event),
		watcher:     watcher,
		done:        make(chan struct{}),
	}
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.registerLoader(metadata.ResourceTypeConfig, &loaders.BinaryLoader{})

	if err := am.watchRecursive(abs, false); err != nil {
		watcher.Close()
		return nil, err
	}
	am.wg.Add(1)
	go am.start()

	core.LogInfo("Asset manager indexed %d files under %s.", am.count(), abs)
	return am, nil
}

func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

func (am *AssetManager) Root() string {
	return am.root
}

func (am *AssetManager) count() int {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return len(am.assets)
}

// Assets returns the indexed assets sorted by path.
func (am *AssetManager) Assets() []AssetInfo {
	am.mu.RLock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	am.mu.RUnlock()
	slices.SortFunc(out, func(a, b AssetInfo) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Lookup accepts a path relative to the root or an absolute path inside it.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	key, ok := am.key(path)
	if !ok {
		return AssetInfo{}, false
	}
	am.mu.RLock()
	defer am.mu.RUnlock()
	a, ok := am.assets[key]
	return a, ok
}

// Load runs the loader registered for the asset type.
func (am *AssetManager) Load(path string, params interface{}) (*metadata.Resource, error) {
	asset, ok := am.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrAssetNotFound)
	}
	loader, ok := am.loaders[asset.Type]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s assets", asset.Type)
	}
	return loader.Load(am.fullPath(asset.Path), params)
}

func (am *AssetManager) Unload(res *metadata.Resource) error {
	loader, ok := am.loaders[res.Type]
	if !ok {
		return fmt.Errorf("no loader registered for %s assets", res.Type)
	}
	return loader.Unload(res)
}

// LoadImage decodes an indexed image into RGBA8 pixels.
func (am *AssetManager) LoadImage(path string, params *metadata.ImageResourceParams) (*metadata.ImageResourceData, error) {
	res, err := am.Load(path, params)
	if err != nil {
		return nil, err
	}
	data, ok := res.Data.(*metadata.ImageResourceData)
	if !ok {
		return nil, fmt.Errorf("%s is a %s asset, not an image", path, res.Type)
	}
	return data, nil
}

// LoadShader returns the SPIR-V of the program stored as <name>.spv.
func (am *AssetManager) LoadShader(name string) ([]byte, error) {
	asset, ok := am.shader(name)
	if !ok {
		return nil, fmt.Errorf("shader %q: %w", name, ErrAssetNotFound)
	}
	res, err := am.loaders[metadata.ResourceTypeShader].Load(am.fullPath(asset.Path), nil)
	if err != nil {
		return nil, err
	}
	return res.Data.([]byte), nil
}

// ShaderNames returns the names of every indexed program, sorted.
func (am *AssetManager) ShaderNames() []string {
	am.mu.RLock()
	defer am.mu.RUnlock()
	var names []string
	for _, a := range am.assets {
		if a.Type == metadata.ResourceTypeShader {
			names = append(names, a.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// shader picks the shortest path when the same name exists twice.
func (am *AssetManager) shader(name string) (AssetInfo, bool) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	var found AssetInfo
	ok := false
	for _, a := range am.assets {
		if a.Type != metadata.ResourceTypeShader || a.Name != name {
			continue
		}
		if !ok || len(a.Path) < len(found.Path) || (len(a.Path) == len(found.Path) && a.Path < found.Path) {
			found, ok = a, true
		}
	}
	return found, ok
}

// Subscribe returns a channel of asset changes and a function that
// cancels the subscription. Events are dropped for subscribers that do not
// keep up.
func (am *AssetManager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	am.subsMu.Lock()
	if am.subscribers == nil {
		am.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := am.nextSub
	am.nextSub++
	am.subscribers[id] = ch
	am.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			am.subsMu.Lock()
			defer am.subsMu.Unlock()
			if c, ok := am.subscribers[id]; ok {
				delete(am.subscribers, id)
				close(c)
			}
		})
	}
}

func (am *AssetManager) publish(e Event) {
	am.subsMu.Lock()
	defer am.subsMu.Unlock()
	for _, ch := range am.subscribers {
		select {
		case ch <- e:
		default:
			core.LogWarn("asset event for %s dropped, subscriber is full", e.Asset.Path)
		}
	}
}

// Close stops watching and closes every subscription.
func (am *AssetManager) Close() error {
	var err error
	am.closeOnce.Do(func() {
		close(am.done)
		am.wg.Wait()
		err = am.watcher.Close()

		am.subsMu.Lock()
		for id, ch := range am.subscribers {
			close(ch)
			delete(am.subscribers, id)
		}
		am.subscribers = nil
		am.subsMu.Unlock()
	})
	return err
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			am.handleEvent(e)
		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)
		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	switch {
	case e.Has(fsnotify.Create):
		s, err := os.Stat(e.Name)
		if err != nil {
			return
		}
		if s.IsDir() {
			// Files created before the watch was added are indexed by the walk.
			if err := am.watchRecursive(e.Name, true); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
			return
		}
		am.index(e.Name, s, true)
	case e.Has(fsnotify.Write):
		s, err := os.Stat(e.Name)
		if err != nil || s.IsDir() {
			return
		}
		am.index(e.Name, s, true)
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		am.removePrefix(e.Name)
		// The watch is gone already when a directory was removed.
		_ = am.watcher.Remove(e.Name)
	}
}

// watchRecursive adds every directory under path to the watch list and
// indexes the files it finds.
func (am *AssetManager) watchRecursive(path string, notify bool) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.watcher.Add(walkPath)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		am.index(walkPath, info, notify)
		return nil
	})
}

func (am *AssetManager) index(path string, info fs.FileInfo, notify bool) {
	key, ok := am.key(path)
	if !ok {
		return
	}
	asset := AssetInfo{
		Name:    strings.TrimSuffix(filepath.Base(key), filepath.Ext(key)),
		Path:    key,
		Type:    determineAssetType(key),
		ModTime: info.ModTime(),
	}

	am.mu.Lock()
	_, existed := am.assets[key]
	am.assets[key] = asset
	am.mu.Unlock()

	if notify {
		op := OpCreated
		if existed {
			op = OpModified
		}
		core.LogDebug("asset %s %s", key, op)
		am.publish(Event{Asset: asset, Op: op})
	}
}

// removePrefix drops the asset at path, or every asset below it when path
// was a directory.
func (am *AssetManager) removePrefix(path string) {
	key, ok := am.key(path)
	if !ok {
		return
	}
	var removed []AssetInfo
	am.mu.Lock()
	for k, a := range am.assets {
		if k == key || strings.HasPrefix(k, key+"/") {
			removed = append(removed, a)
			delete(am.assets, k)
		}
	}
	am.mu.Unlock()
	for _, a := range removed {
		am.publish(Event{Asset: a, Op: OpRemoved})
	}
}

func (am *AssetManager) key(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(am.root, path)
	}
	rel, err := filepath.Rel(am.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (am *AssetManager) fullPath(key string) string {
	return filepath.Join(am.root, filepath.FromSlash(key))
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	case ".toml", ".yaml", ".yml":
		return metadata.ResourceTypeConfig
	case "":
		return metadata.ResourceTypeNone
	default:
		return metadata.ResourceTypeBinary
	}
}
