package catalog

import (
	"math"
	"strings"
)

// Base units every group quantity is stored in.
const (
	UnitGrams = "grams"
	UnitML    = "ml"
	UnitPiece = "piece"
)

// Family groups base units by physical dimension.
type Family string

const (
	FamilyMass    Family = "mass"
	FamilyVolume  Family = "volume"
	FamilyCount   Family = "count"
	FamilyUnknown Family = "unknown"
)

// Conversion maps one purchase unit onto a base unit.
type Conversion struct {
	BaseUnit string
	Factor   float64
}

// UnitTable is keyed by lowercase purchase unit name.
type UnitTable map[string]Conversion

// DefaultUnitTable returns a fresh copy of the built-in conversions.
func DefaultUnitTable() UnitTable {
	return UnitTable{
		"kg":     {UnitGrams, 1000},
		"g":      {UnitGrams, 1},
		"gm":     {UnitGrams, 1},
		"gram":   {UnitGrams, 1},
		"grams":  {UnitGrams, 1},
		"litre":  {UnitML, 1000},
		"liter":  {UnitML, 1000},
		"l":      {UnitML, 1000},
		"ml":     {UnitML, 1},
		"dozen":  {UnitPiece, 12},
		"piece":  {UnitPiece, 1},
		"pieces": {UnitPiece, 1},
		"pcs":    {UnitPiece, 1},
	}
}

// Minimum stock defaults by family, in base units.
const (
	DefaultMinStockBulk  int64 = 250
	DefaultMinStockCount int64 = 5
)

// UnitConverter resolves purchase units against an immutable table.
type UnitConverter struct {
	table UnitTable
}

// NewUnitConverter copies table so later changes by the caller are not observed.
// A nil table means DefaultUnitTable.
func NewUnitConverter(table UnitTable) *UnitConverter {
	if table == nil {
		table = DefaultUnitTable()
	}
	own := make(UnitTable, len(table))
	for k, v := range table {
		own[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &UnitConverter{table: own}
}

func (c *UnitConverter) lookup(unit string) Conversion {
	key := strings.ToLower(strings.TrimSpace(unit))
	if conv, ok := c.table[key]; ok {
		return conv
	}
	return Conversion{BaseUnit: key, Factor: 1}
}

// BaseUnit returns the base unit for unit. Unknown units are their own base.
func (c *UnitConverter) BaseUnit(unit string) string {
	return c.lookup(unit).BaseUnit
}

// ToBaseUnit converts quantity to the base unit, rounded to the nearest integer.
func (c *UnitConverter) ToBaseUnit(quantity float64, unit string) int64 {
	return int64(math.Round(quantity * c.lookup(unit).Factor))
}

// Family reports the dimension of a base unit.
func (c *UnitConverter) Family(baseUnit string) Family {
	switch strings.ToLower(baseUnit) {
	case UnitGrams:
		return FamilyMass
	case UnitML:
		return FamilyVolume
	case UnitPiece:
		return FamilyCount
	}
	return FamilyUnknown
}

// DefaultMinStock is the reorder threshold a new group starts with.
func (c *UnitConverter) DefaultMinStock(baseUnit string) int64 {
	if c.Family(baseUnit) == FamilyCount {
		return DefaultMinStockCount
	}
	return DefaultMinStockBulk
}
