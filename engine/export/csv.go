package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output file names inside the output directory.
const (
	EntitiesFile      = "semiconductor_organizations.csv"
	RelationshipsFile = "semiconductor_relationships.csv"
)

var (
	entityHeader       = []string{"name", "uri", "abstract", "headquarters", "founding_date", "employees", "locations", "countries"}
	relationshipHeader = []string{"source_uri", "target_uri"}
)

// WriteEntitiesCSV writes the organizations table with a header row.
// Null cells are written empty.
func WriteEntitiesCSV(w io.Writer, rows []EntityRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(entityHeader); err != nil {
		return fmt.Errorf("export: entities header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Name,
			r.URI,
			Value(r.Abstract),
			Value(r.Headquarters),
			Value(r.FoundingDate),
			Value(r.Employees),
			Value(r.Locations),
			Value(r.Countries),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: entity %s: %w", r.URI, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: entities: %w", err)
	}
	return nil
}

// WriteRelationshipsCSV writes the relationships table with a header row.
func WriteRelationshipsCSV(w io.Writer, rows []RelationshipRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(relationshipHeader); err != nil {
		return fmt.Errorf("export: relationships header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.SourceURI, r.TargetURI}); err != nil {
			return fmt.Errorf("export: relationship %s -> %s: %w", r.SourceURI, r.TargetURI, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: relationships: %w", err)
	}
	return nil
}

// WriteTables writes both tables into dir under their fixed names, creating
// dir if needed and replacing existing files. It returns the written paths.
func WriteTables(dir string, t Tables) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}
	entities := filepath.Join(dir, EntitiesFile)
	if err := writeFile(entities, func(w io.Writer) error { return WriteEntitiesCSV(w, t.Entities) }); err != nil {
		return nil, err
	}
	relationships := filepath.Join(dir, RelationshipsFile)
	if err := writeFile(relationships, func(w io.Writer) error { return WriteRelationshipsCSV(w, t.Relationships) }); err != nil {
		return nil, err
	}
	return []string{entities, relationships}, nil
}

// writeFile writes through a temp file in the same directory and renames it
// over path, so readers never see a half-written table.
func writeFile(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("export: %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("export: %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("export: %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: %s: %w", path, err)
	}
	return nil
}
