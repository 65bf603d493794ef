package payment

import (
	"context"
	"fmt"
	"os"

	"autodiag/models"
	"autodiag/utils"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type catalogEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Audience     string `yaml:"audience"`
	Kind         string `yaml:"kind"`
	Quantity     int    `yaml:"quantity"`
	PriceCents   int64  `yaml:"priceCents"`
	Currency     string `yaml:"currency"`
	DurationDays int    `yaml:"durationDays"`
	Active       *bool  `yaml:"active"`
}

type catalogFile struct {
	Packages []catalogEntry `yaml:"packages"`
}

// ParseCatalog decodes a YAML package catalog. Entries are active unless
// they say otherwise.
func ParseCatalog(data []byte) ([]models.Package, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse package catalog: %w", err)
	}
	out := make([]models.Package, 0, len(file.Packages))
	for _, e := range file.Packages {
		active := e.Active == nil || *e.Active
		out = append(out, models.Package{
			ID:           e.ID,
			Name:         e.Name,
			Description:  e.Description,
			Audience:     models.PackageAudience(e.Audience),
			Kind:         models.PackageKind(e.Kind),
			Quantity:     e.Quantity,
			PriceCents:   e.PriceCents,
			Currency:     e.Currency,
			DurationDays: e.DurationDays,
			Active:       active,
		})
	}
	return out, nil
}

// SeedCatalog upserts every package in the catalog at path. A missing file
// is not an error.
func (s *DefaultPaymentService) SeedCatalog(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read package catalog: %w", err)
	}
	pkgs, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}
	for _, p := range pkgs {
		if _, err := s.UpsertPackage(ctx, p); err != nil {
			return 0, fmt.Errorf("package %q: %w", p.ID, err)
		}
	}
	utils.GetLogger().Info("package catalog seeded", zap.String("path", path), zap.Int("packages", len(pkgs)))
	return len(pkgs), nil
}
