package core

import (
	"github.com/ehrbase/aqlengine/core/internal/dbformat"
)

// ToDB converts canonical RM JSON into the stored JSON format.
func ToDB(rmJSON []byte) ([]byte, error) {
	return dbformat.ToDB(rmJSON)
}

// FromDB converts a value of a JSON column back into canonical RM JSON.
func FromDB(dbJSON []byte) ([]byte, error) {
	return dbformat.FromDB(dbJSON)
}

// ReconstructObject rebuilds the RM object of an Object column. A NULL
// column yields nil.
func ReconstructObject(agg []byte) ([]byte, error) {
	if len(agg) == 0 || string(agg) == "null" {
		return nil, nil
	}
	return dbformat.ReconstructJSON(agg)
}

// ReadColumn converts a scanned column value to RM JSON as col requires.
// Plain values are returned unchanged.
func ReadColumn(col Column, v []byte) ([]byte, error) {
	switch {
	case col.Object:
		return ReconstructObject(v)
	case col.JSON:
		if v == nil {
			return nil, nil
		}
		return FromDB(v)
	}
	return v, nil
}
