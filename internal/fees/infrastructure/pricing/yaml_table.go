package pricing

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	fees "confreg/internal/fees/domain"
)

// fileSpec mirrors the YAML layout; amounts are whole currency units.
type fileSpec struct {
	EarlyBirdDeadline string                                            `yaml:"early_bird_deadline"`
	TaxRate           string                                            `yaml:"tax_rate"`
	FXRate            string                                            `yaml:"fx_rate"`
	Author            map[string]map[string]int64                       `yaml:"author"`
	NonAuthor         map[string]map[string]map[string]map[string]int64 `yaml:"non_author"`
}

// LoadRateTable returns the table at path, or the built-in table when path is empty.
func LoadRateTable(path string) (*fees.RateTable, error) {
	if path == "" {
		return fees.DefaultRateTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rate table: %w", err)
	}
	return ParseRateTable(data)
}

// ParseRateTable decodes and validates a YAML rate table.
// Every nationality/category (and type/phase for non-authors) must be present.
func ParseRateTable(data []byte) (*fees.RateTable, error) {
	var raw fileSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rate table: %w", err)
	}

	deadline, err := time.Parse(time.RFC3339, raw.EarlyBirdDeadline)
	if err != nil {
		return nil, errors.New("rate table: early_bird_deadline must be RFC3339")
	}
	tax, err := decimal.NewFromString(raw.TaxRate)
	if err != nil {
		return nil, errors.New("rate table: invalid tax_rate")
	}
	fx, err := decimal.NewFromString(raw.FXRate)
	if err != nil {
		return nil, errors.New("rate table: invalid fx_rate")
	}

	spec := fees.RateTableSpec{
		EarlyBirdDeadline: deadline,
		TaxRate:           tax,
		FXRate:            fx,
		Author:            make(map[fees.Nationality]map[fees.Category]decimal.Decimal),
		NonAuthor:         make(map[fees.Nationality]map[fees.Category]map[fees.ConferenceType]map[fees.Phase]decimal.Decimal),
	}

	for _, n := range fees.Nationalities {
		byCategory, ok := raw.Author[string(n)]
		if !ok {
			return nil, fmt.Errorf("rate table: author.%s missing", n)
		}
		spec.Author[n] = make(map[fees.Category]decimal.Decimal)
		for _, c := range fees.Categories {
			amount, ok := byCategory[string(c)]
			if !ok {
				return nil, fmt.Errorf("rate table: author.%s.%s missing", n, c)
			}
			spec.Author[n][c] = decimal.NewFromInt(amount)
		}

		nonAuthor, ok := raw.NonAuthor[string(n)]
		if !ok {
			return nil, fmt.Errorf("rate table: non_author.%s missing", n)
		}
		spec.NonAuthor[n] = make(map[fees.Category]map[fees.ConferenceType]map[fees.Phase]decimal.Decimal)
		for _, c := range fees.Categories {
			byType, ok := nonAuthor[string(c)]
			if !ok {
				return nil, fmt.Errorf("rate table: non_author.%s.%s missing", n, c)
			}
			spec.NonAuthor[n][c] = make(map[fees.ConferenceType]map[fees.Phase]decimal.Decimal)
			for _, ct := range fees.ConferenceTypes {
				byPhase, ok := byType[string(ct)]
				if !ok {
					return nil, fmt.Errorf("rate table: non_author.%s.%s.%s missing", n, c, ct)
				}
				spec.NonAuthor[n][c][ct] = make(map[fees.Phase]decimal.Decimal)
				for _, p := range fees.Phases {
					amount, ok := byPhase[string(p)]
					if !ok {
						return nil, fmt.Errorf("rate table: non_author.%s.%s.%s.%s missing", n, c, ct, p)
					}
					spec.NonAuthor[n][c][ct][p] = decimal.NewFromInt(amount)
				}
			}
		}
	}

	return fees.NewRateTable(spec)
}
