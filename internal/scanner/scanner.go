// Package scanner defines pluggable per-site crawling strategies.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"IntelVault/internal/domain"
)

// Option keys understood by the bundled strategies.
const (
	OptionSourceType  = "sourceType"
	OptionContentType = "contentType"
	OptionMaxItems    = "maxItems"
	OptionDays        = "days"
)

// Category describes a concrete section endpoint provided by config.
type Category struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Day        time.Time
	SiteName   string
	Categories []Category
	Options    map[string]string
}

// IntOption parses Options[key], falling back to def when absent or invalid.
func (r Request) IntOption(key string, def int) int {
	v, ok := r.Options[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Option returns Options[key] or def.
func (r Request) Option(key, def string) string {
	if v := r.Options[key]; v != "" {
		return v
	}
	return def
}

// Scanner captures a single strategy implementation (arXiv listings, feeds).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry holding the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
