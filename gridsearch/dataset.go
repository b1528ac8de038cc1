package gridsearch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-sync/audio"
)

// ErrNoDirectories is returned when the dataset root has no usable sub-directories.
var ErrNoDirectories = errors.New("no source directories found")

// DiscoverDirectories lists the immediate sub-directories of root, skipping
// hidden entries, in lexical order.
func DiscoverDirectories(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset root: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDirectories, root)
	}

	sort.Strings(dirs)
	return dirs, nil
}

// sourceSet is the four waveforms of one directory: the synchronized pair
// followed by the unsynchronized pair, all at the same sample rate.
type sourceSet struct {
	signals    [4][]float64
	sampleRate int
}

func loadSourceSet(dir string, names [4]string) (*sourceSet, error) {
	set := &sourceSet{}
	for i, name := range names {
		w, err := audio.ReadWAVMono(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		if i == 0 {
			set.sampleRate = w.SampleRate
		} else if w.SampleRate != set.sampleRate {
			return nil, fmt.Errorf("sample rate mismatch in %s: %s is %d Hz, expected %d Hz",
				dir, name, w.SampleRate, set.sampleRate)
		}
		set.signals[i] = w.Samples
	}
	return set, nil
}

// sourceCache loads each directory once and drops it after its last unit.
type sourceCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	names   [4]string
}

type cacheEntry struct {
	once sync.Once
	set  *sourceSet
	err  error
	refs int
}

func newSourceCache(names [4]string, dirs []string, unitsPerDir int) *sourceCache {
	c := &sourceCache{
		entries: make(map[string]*cacheEntry, len(dirs)),
		names:   names,
	}
	for _, dir := range dirs {
		c.entries[dir] = &cacheEntry{refs: unitsPerDir}
	}
	return c
}

func (c *sourceCache) get(dir string) (*sourceSet, error) {
	c.mu.Lock()
	entry, ok := c.entries[dir]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("directory %s is not part of this run", dir)
	}

	entry.once.Do(func() {
		entry.set, entry.err = loadSourceSet(dir, c.names)
	})
	return entry.set, entry.err
}

func (c *sourceCache) release(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[dir]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(c.entries, dir)
	}
}
