package money

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestDataGenerator produces realistic Brazilian investment positions for
// tests that need populated portfolios without a real statement.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed pins the sequence for reproducible tests.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// TestPosition is a generated statement position.
type TestPosition struct {
	ID              uuid.UUID
	Name            string
	Section         string
	Indexer         string
	IssueRate       decimal.Decimal
	ApplicationDate time.Time
	MaturityDate    time.Time
	InitialAmount   *Money
	GrossValue      *Money
	Taxes           *Money
	NetValue        *Money
}

var testBanks = []string{
	"BANCO BRADESCO S A", "BANCO VOTORANTIM S A", "BANCO ABC BRASIL",
	"BANCO DAYCOVAL", "BANCO FIBRA", "BANCO PINE", "BANCO SOFISA",
	"BANCO MASTER", "PARANA BANCO", "BANCO BMG",
}

var testInstruments = []string{"CDB", "LCA", "LCI", "LF", "CRI", "CRA", "DEB"}

var testFundManagers = []string{
	"KAPITALO", "VERDE", "LEGACY", "IBIUNA", "SPX", "KINEA", "ABSOLUTE",
}

var testSections = []string{
	"PÓS-FIXADO", "PRÉ-FIXADO", "JURO REAL - INFLAÇÃO", "MULTIMERCADOS",
}

var testIndexers = []string{"CDI", "PRE", "IPCA"}

// FixedIncomeName builds a plausible bank paper name, e.g.
// "CDB BANCO DAYCOVAL".
func (g *TestDataGenerator) FixedIncomeName() string {
	instrument := testInstruments[g.faker.Number(0, len(testInstruments)-1)]
	bank := testBanks[g.faker.Number(0, len(testBanks)-1)]
	return instrument + " " + bank
}

// FundName builds a plausible multimarket fund name, e.g.
// "KAPITALO K10 FIC MM".
func (g *TestDataGenerator) FundName() string {
	manager := testFundManagers[g.faker.Number(0, len(testFundManagers)-1)]
	return fmt.Sprintf("%s %s%d FIC MM", manager, g.faker.LetterN(1), g.faker.Number(1, 99))
}

// RandomAmount generates a Money value within a cent range.
func (g *TestDataGenerator) RandomAmount(minCents, maxCents int64) *Money {
	if minCents > maxCents {
		minCents, maxCents = maxCents, minCents
	}
	cents := g.faker.Int64() % (maxCents - minCents + 1)
	if cents < 0 {
		cents = -cents
	}
	return FromCents(minCents + cents)
}

// Position generates one position with internally consistent amounts: gross
// grows from the initial amount and net is gross minus taxes.
func (g *TestDataGenerator) Position() TestPosition {
	section := testSections[g.faker.Number(0, len(testSections)-1)]

	name := g.FixedIncomeName()
	indexer := testIndexers[g.faker.Number(0, len(testIndexers)-1)]
	if section == "MULTIMERCADOS" {
		name = g.FundName()
		indexer = ""
	}

	initial := g.RandomAmount(1_000_000, 50_000_000) // R$10k to R$500k
	growthPct := decimal.NewFromFloat(g.faker.Float64Range(0, 30))
	gross := FromDecimal(initial.Decimal().Mul(decimal.NewFromInt(100).Add(growthPct)).Div(decimal.NewFromInt(100)))
	taxes := FromDecimal(gross.Sub(initial).Decimal().Mul(decimal.NewFromFloat(0.15)))

	applied := g.faker.DateRange(time.Now().AddDate(-4, 0, 0), time.Now().AddDate(-1, 0, 0))

	return TestPosition{
		ID:              uuid.New(),
		Name:            name,
		Section:         section,
		Indexer:         indexer,
		IssueRate:       decimal.NewFromFloat(g.faker.Float64Range(95, 120)).Round(2),
		ApplicationDate: applied,
		MaturityDate:    applied.AddDate(g.faker.Number(1, 5), 0, 0),
		InitialAmount:   initial,
		GrossValue:      gross,
		Taxes:           taxes,
		NetValue:        gross.Sub(taxes),
	}
}

// Positions generates a portfolio of n positions.
func (g *TestDataGenerator) Positions(n int) []TestPosition {
	out := make([]TestPosition, n)
	for i := range out {
		out[i] = g.Position()
	}
	return out
}
