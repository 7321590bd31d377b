// Package enrich resolves the issuing company's CNPJ for position names.
// The strategy is hybrid: a disk cache first, then a model pass that
// normalizes the asset name into a company name and suggests candidate
// CNPJs, then validation against the public registries (ReceitaWS primary,
// BrasilAPI fallback). Every step fails open; a name that cannot be
// resolved simply stays unenriched.
package enrich

import (
	"context"
	"log/slog"
	"strings"
)

// Issuer sources, also stored in the cache file.
const (
	SourceCache     = "cache"
	SourceReceitaWS = "receita_ws"
	SourceBrasilAPI = "brasil_api"
)

// Issuer is a validated company record for one position name.
type Issuer struct {
	CNPJ      string // formatted XX.XXX.XXX/XXXX-XX
	Company   string // model-normalized company name
	LegalName string // razão social from the registry
	Status    string // cadastral situation from the registry
	Source    string
}

// Generator produces model completions. *semantic.GeminiProvider satisfies it.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Service runs the hybrid CNPJ resolution.
type Service struct {
	gen      Generator
	cache    *diskCache
	registry *registry
	logger   *slog.Logger
}

// NewService builds a Service. The cache file may be absent; it is created
// on the first save. requestsPerMinute throttles ReceitaWS calls.
func NewService(gen Generator, cachePath string, requestsPerMinute int, logger *slog.Logger) *Service {
	return &Service{
		gen:      gen,
		cache:    openDiskCache(cachePath),
		registry: newRegistry(requestsPerMinute, logger),
		logger:   logger,
	}
}

// Lookup resolves a single asset name. A nil Issuer with a nil error means
// the name could not be resolved; errors are reserved for model and
// transport failures.
func (s *Service) Lookup(ctx context.Context, assetName string) (*Issuer, error) {
	name := strings.TrimSpace(assetName)
	if name == "" || strings.EqualFold(name, "sem nome") {
		return nil, nil
	}

	if iss, ok := s.cache.get(name); ok {
		s.logger.Debug("cnpj cache hit", "asset", name, "cnpj", iss.CNPJ)
		return iss, nil
	}

	company, err := s.companyName(ctx, name)
	if err != nil {
		return nil, err
	}
	if company == "" {
		s.logger.Debug("no company identified for asset", "asset", name)
		return nil, nil
	}

	candidates, err := s.cnpjCandidates(ctx, company)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Debug("no cnpj candidates", "asset", name, "company", company)
		return nil, nil
	}

	for _, cand := range candidates {
		iss, err := s.registry.lookupReceitaWS(ctx, cand)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("receitaws lookup failed", "cnpj", cand, "error", err)
		}
		if iss == nil {
			iss, err = s.registry.lookupBrasilAPI(ctx, cand)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				s.logger.Warn("brasilapi lookup failed", "cnpj", cand, "error", err)
				continue
			}
		}
		if iss != nil {
			iss.Company = company
			s.cache.put(name, iss)
			s.logger.Info("cnpj validated", "asset", name, "cnpj", iss.CNPJ, "source", iss.Source)
			return iss, nil
		}
	}

	s.logger.Debug("no candidate validated", "asset", name, "company", company)
	return nil, nil
}

// ResolveAll looks up every distinct name and returns the hits keyed by the
// exact input name. Failures are logged and skipped so one bad name never
// takes down the pass; the cache is flushed at the end.
func (s *Service) ResolveAll(ctx context.Context, names []string) map[string]*Issuer {
	issuers := make(map[string]*Issuer)
	var cached, resolved, missed int

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		iss, err := s.Lookup(ctx, name)
		if err != nil {
			s.logger.Warn("cnpj lookup failed", "asset", name, "error", err)
			missed++
			continue
		}
		if iss == nil {
			missed++
			continue
		}

		issuers[name] = iss
		if iss.Source == SourceCache {
			cached++
		} else {
			resolved++
		}
	}

	if err := s.cache.save(); err != nil {
		s.logger.Warn("failed to save cnpj cache", "error", err)
	}

	s.logger.Info("cnpj enrichment finished",
		"names", len(seen), "cached", cached, "resolved", resolved, "missed", missed)
	return issuers
}
