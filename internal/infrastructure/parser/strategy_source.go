// Package parser holds the candidate scanners and the source that fans
// configured sites out to them.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"IntelVault/internal/config"
	"IntelVault/internal/domain"
	"IntelVault/internal/ports"
	"IntelVault/internal/scanner"
)

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchCandidates runs every configured site. A failing site is logged and
// skipped; the call fails only when every site failed.
func (s *StrategySource) FetchCandidates(ctx context.Context, day time.Time) ([]domain.Candidate, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.logger.Debug("fetch candidates", "sites", len(s.sites), "day", day.Format(time.DateOnly))

	var (
		aggregated []domain.Candidate
		errs       []error
	)
	for _, site := range s.sites {
		results, err := s.scanSite(ctx, site, day)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("site skipped", "site", site.Name, "scanner", site.Scanner, "error", err)
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("site produced candidates", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	if len(s.sites) > 0 && len(errs) == len(s.sites) {
		return nil, fmt.Errorf("all sites failed: %w", errors.Join(errs...))
	}
	s.logger.Debug("strategy source done", "total_candidates", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig, day time.Time) ([]domain.Candidate, error) {
	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}

	req := scanner.Request{
		Day:        day,
		SiteName:   site.Name,
		Options:    site.Options,
		Categories: toScannerCategories(site.Categories),
	}
	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan site %s: %w", site.Name, err)
	}
	for i := range results {
		if results[i].SourceName == "" {
			results[i].SourceName = site.Name
		}
	}
	return results, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}
