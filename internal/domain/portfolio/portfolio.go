// Package portfolio assembles the snapshot that sits between extraction and
// export: classified positions grouped the way the statement groups them,
// with per-bucket and grand totals carried in integer cents. A snapshot is
// built once and only read afterwards.
package portfolio

import (
	"time"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/normalize"
	"github.com/widia-io/investiment-scrapper-v2/pkg/money"
)

// Position is one statement record with its classification attached.
type Position struct {
	normalize.Record
	Classification classify.Classification
}

// Metadata describes one extraction run.
type Metadata struct {
	ExtractedAt time.Time
	Institution string
	Source      string
}

// Totals aggregates one bucket of positions. Amounts are summed in cents;
// missing values count as zero.
type Totals struct {
	Count int
	Gross *money.Money
	Net   *money.Money
	Taxes *money.Money
}

func newTotals() Totals {
	return Totals{Gross: money.Zero(), Net: money.Zero(), Taxes: money.Zero()}
}

func (t *Totals) add(p *Position) {
	t.Count++
	t.Gross = t.Gross.Add(fromFloat(p.GrossValue))
	t.Net = t.Net.Add(fromFloat(p.NetValue))
	t.Taxes = t.Taxes.Add(fromFloat(p.Taxes))
}

func fromFloat(v *float64) *money.Money {
	if v == nil {
		return money.Zero()
	}
	return money.FromFloat(*v)
}

// Bucket is one statement section inside a group.
type Bucket struct {
	Key       string
	Positions []*Position
	Totals    Totals
}

// Group is one top-level branch of the hierarchy, renda_fixa or
// alternativos.
type Group struct {
	Name    string
	Buckets []*Bucket
	Totals  Totals
}

// Snapshot is the round-trippable intermediate between extraction and the
// exporters. Groups, buckets and positions keep statement encounter order.
type Snapshot struct {
	Metadata   Metadata
	Groups     []*Group
	Incomplete []*Position
	Totals     Totals
}

// Build groups positions in statement order. Complete positions land in
// their section bucket; the rest are kept apart and excluded from totals.
func Build(meta Metadata, positions []*Position) *Snapshot {
	snap := &Snapshot{Metadata: meta, Totals: newTotals()}

	for _, p := range positions {
		if !p.Complete {
			snap.Incomplete = append(snap.Incomplete, p)
			continue
		}

		group := snap.group(p.Section.Group())
		bucket := group.bucket(p.Section.Key())
		bucket.Positions = append(bucket.Positions, p)
		bucket.Totals.add(p)
		group.Totals.add(p)
		snap.Totals.add(p)
	}

	return snap
}

func (s *Snapshot) group(name string) *Group {
	for _, g := range s.Groups {
		if g.Name == name {
			return g
		}
	}
	g := &Group{Name: name, Totals: newTotals()}
	s.Groups = append(s.Groups, g)
	return g
}

func (g *Group) bucket(key string) *Bucket {
	for _, b := range g.Buckets {
		if b.Key == key {
			return b
		}
	}
	b := &Bucket{Key: key, Totals: newTotals()}
	g.Buckets = append(g.Buckets, b)
	return b
}

// Complete returns the complete positions in hierarchy order, the order the
// flat exports use.
func (s *Snapshot) Complete() []*Position {
	var out []*Position
	for _, g := range s.Groups {
		for _, b := range g.Buckets {
			out = append(out, b.Positions...)
		}
	}
	return out
}

// All returns every position, complete first, then incomplete.
func (s *Snapshot) All() []*Position {
	return append(s.Complete(), s.Incomplete...)
}

// Len counts every position including incomplete ones.
func (s *Snapshot) Len() int {
	return s.Totals.Count + len(s.Incomplete)
}

// CategoryTotal aggregates complete positions sharing an asset type and a
// category.
type CategoryTotal struct {
	AssetType string
	Category  string
	Totals    Totals
}

// ByCategory aggregates complete positions by asset type, then category,
// both in encounter order. Unclassified positions group under empty labels.
func (s *Snapshot) ByCategory() []*CategoryTotal {
	var assetTypes []string
	byType := make(map[string][]*Position)
	for _, p := range s.Complete() {
		at := p.Classification.AssetType
		if _, ok := byType[at]; !ok {
			assetTypes = append(assetTypes, at)
		}
		byType[at] = append(byType[at], p)
	}

	var out []*CategoryTotal
	for _, at := range assetTypes {
		var categories []string
		byCategory := make(map[string]*CategoryTotal)
		for _, p := range byType[at] {
			category := p.Classification.Category
			ct, ok := byCategory[category]
			if !ok {
				ct = &CategoryTotal{AssetType: at, Category: category, Totals: newTotals()}
				byCategory[category] = ct
				categories = append(categories, category)
			}
			ct.Totals.add(p)
		}
		for _, category := range categories {
			out = append(out, byCategory[category])
		}
	}
	return out
}
