package vectorindex

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persisted state layout. Internal, not a wire format: external backup
// tooling may read these files but must treat them as subject to change.
const (
	vectorsFile  = "vectors.gob"
	mappingFile  = "mapping.gob"
	metadataFile = "metadata.json"
)

type persistedVectors struct {
	Dim     int
	Vectors [][]float32
}

type persistedMapping struct {
	PosToID []string
	IDToPos map[string]int
}

// load restores persisted state. Returns false if no index exists yet.
func (s *Store) load() (bool, error) {
	vecPath := filepath.Join(s.dir, vectorsFile)
	if _, err := os.Stat(vecPath); os.IsNotExist(err) {
		return false, nil
	}

	var pv persistedVectors
	if err := readGob(vecPath, &pv); err != nil {
		return false, fmt.Errorf("read vectors: %w", err)
	}
	s.dim = pv.Dim
	s.vectors = pv.Vectors

	var pm persistedMapping
	if err := readGob(filepath.Join(s.dir, mappingFile), &pm); err != nil {
		return false, fmt.Errorf("read id mapping: %w", err)
	}
	s.posToID = pm.PosToID
	s.idToPos = pm.IDToPos
	if s.idToPos == nil {
		s.idToPos = make(map[string]int)
	}

	metaPath := filepath.Join(s.dir, metadataFile)
	if data, err := os.ReadFile(metaPath); err == nil {
		if err := json.Unmarshal(data, &s.metadata); err != nil {
			return false, fmt.Errorf("parse metadata: %w", err)
		}
	}
	if s.metadata == nil {
		s.metadata = make(map[string]map[string]any)
	}

	if len(s.posToID) != len(s.vectors) {
		return false, fmt.Errorf("corrupt index: %d positions for %d vectors", len(s.posToID), len(s.vectors))
	}
	return true, nil
}

// save writes the full index state. Each file is written to a temp path and
// renamed so a crashed save never leaves a truncated file behind.
func (s *Store) save() error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	pv := persistedVectors{Dim: s.dim, Vectors: s.vectors}
	if err := writeGob(filepath.Join(s.dir, vectorsFile), pv); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	pm := persistedMapping{PosToID: s.posToID, IDToPos: s.idToPos}
	if err := writeGob(filepath.Join(s.dir, mappingFile), pm); err != nil {
		return fmt.Errorf("write id mapping: %w", err)
	}

	data, err := json.Marshal(s.metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, metadataFile), data); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func readGob(path string, v any) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return gob.NewDecoder(f).Decode(v)
}

func writeGob(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
