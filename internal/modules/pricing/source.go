package pricing

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wali/internal/types"
)

// FileSource reads the tariff table from a YAML file:
//
//	currency: XOF
//	tariffs:
//	  DELIVERY: {base_fee: 500, per_km_rate: 200, free_km: 1, min_fee: 500, max_fee: 5000}
type FileSource struct {
	Path string
}

type tariffFile struct {
	Currency string            `yaml:"currency"`
	Tariffs  map[string]Tariff `yaml:"tariffs"`
}

func (f FileSource) LoadTariffs(_ context.Context) (Table, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Table{}, fmt.Errorf("pricing: read tariff file: %w", err)
	}
	return ParseTariffYAML(raw)
}

func ParseTariffYAML(raw []byte) (Table, error) {
	var doc tariffFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Table{}, fmt.Errorf("pricing: parse tariff file: %w", err)
	}
	table := Table{Currency: doc.Currency, Tariffs: make(map[types.OrderType]Tariff, len(doc.Tariffs))}
	for k, t := range doc.Tariffs {
		ot, err := types.ParseOrderType(k)
		if err != nil {
			return Table{}, fmt.Errorf("pricing: %w", err)
		}
		table.Tariffs[ot] = t
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}
