package hystrixconfig

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a properties file: a command block and a
// thread pool block, each keyed by name. Unknown top-level keys are ignored
// by yaml.v3's default decode behavior, so adding a new property group to a
// file already in production doesn't break older binaries reading it.
type document struct {
	Commands    map[string]CommandProperties    `yaml:"commands"`
	ThreadPools map[string]ThreadPoolProperties `yaml:"threadPools"`
}

// YAMLPropertiesStrategy resolves properties from a YAML file on disk,
// re-read on every Reload call and swapped in atomically so concurrent
// CommandProperties/ThreadPoolProperties readers never observe a partially
// updated document. Construct with NewYAMLPropertiesStrategy, which performs
// the first load synchronously; call Reload (directly, or via Watch) when
// the deployment pushes a new file.
type YAMLPropertiesStrategy struct {
	path string
	doc  atomic.Pointer[document]
}

// NewYAMLPropertiesStrategy loads path and returns a strategy backed by it.
func NewYAMLPropertiesStrategy(path string) (*YAMLPropertiesStrategy, error) {
	s := &YAMLPropertiesStrategy{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file and atomically swaps in the new document.
// On any read or parse error the previously loaded document is left in
// place and the error is returned, so a bad deploy of the properties file
// never takes a running process down to zero-value defaults.
func (s *YAMLPropertiesStrategy) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("hystrixconfig: reading %s: %w", s.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("hystrixconfig: parsing %s: %w", s.path, err)
	}
	s.doc.Store(&doc)
	return nil
}

// Watch starts a goroutine that calls Reload every interval until stop is
// closed, invoking onReloadErr (if non-nil) with any Reload error instead of
// panicking or silently dropping it. Callers own the returned goroutine's
// lifetime via stop.
func (s *YAMLPropertiesStrategy) Watch(interval time.Duration, stop <-chan struct{}, onReloadErr func(error)) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Reload(); err != nil && onReloadErr != nil {
					onReloadErr(err)
				}
			}
		}
	}()
}

func (s *YAMLPropertiesStrategy) CommandProperties(key string) CommandProperties {
	doc := s.doc.Load()
	if doc != nil {
		if p, ok := doc.Commands[key]; ok {
			return p
		}
	}
	return DefaultCommandProperties()
}

func (s *YAMLPropertiesStrategy) ThreadPoolProperties(key string) ThreadPoolProperties {
	doc := s.doc.Load()
	if doc != nil {
		if p, ok := doc.ThreadPools[key]; ok {
			return p
		}
	}
	return DefaultThreadPoolProperties()
}
