package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
)

var requiredColumns = []string{"name", "hp", "power", "cast_cost"}

// readCardsCSV parses a card export. The first row is a header; columns are
// matched by name so their order is free. minimum_crowd, art and flavor
// are optional.
func readCardsCSV(r io.Reader) ([]cards.Definition, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("CSV file is empty or has no data rows")
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", name)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	number := func(record []string, name string, row int) (int, error) {
		raw := field(record, name)
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("row %d: %s %q is not a number", row, name, raw)
		}
		return n, nil
	}

	defs := make([]cards.Definition, 0, len(records)-1)
	for i, record := range records[1:] {
		row := i + 2
		def := cards.Definition{
			Name:   field(record, "name"),
			Art:    field(record, "art"),
			Flavor: field(record, "flavor"),
		}
		if def.Stats.HP, err = number(record, "hp", row); err != nil {
			return nil, err
		}
		if def.Stats.Power, err = number(record, "power", row); err != nil {
			return nil, err
		}
		if def.Stats.CastCost, err = number(record, "cast_cost", row); err != nil {
			return nil, err
		}
		if def.Stats.MinimumCrowd, err = number(record, "minimum_crowd", row); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if _, err := cards.NewCatalog(defs); err != nil {
		return nil, err
	}
	return defs, nil
}
