package storage

import (
	"fmt"
	"path"
	"regexp"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildDatasetFilePath builds the object key for one parquet part of a
// published dataset, e.g. "datasets/olist/olist_master/part-00002.parquet".
func BuildDatasetFilePath(datasetName, tableName string, sequence int) (string, error) {
	if err := validatePathComponent(datasetName, "dataset name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	return path.Join(
		"datasets",
		datasetName,
		tableName,
		fmt.Sprintf("part-%05d.parquet", sequence),
	), nil
}

// DatasetTablePrefix is the key prefix under which all parts of a dataset
// table live; listing it yields the files to attach as a warehouse view.
func DatasetTablePrefix(datasetName, tableName string) (string, error) {
	if err := validatePathComponent(datasetName, "dataset name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join("datasets", datasetName, tableName), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
