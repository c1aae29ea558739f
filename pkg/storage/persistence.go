package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// SaveToFile saves all collections and index definitions to a single file.
func (e *Engine) SaveToFile(filename string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.saveToFileLocked(filename)
}

func (e *Engine) saveToFileLocked(filename string) error {
	storageData := NewStorageData()
	for collName, collection := range e.collections {
		storageData.Collections[collName] = make(map[string]interface{}, len(collection.Documents))
		for docID, doc := range collection.Documents {
			storageData.Collections[collName][docID] = map[string]interface{}(doc)
		}
	}
	for collName, defs := range e.indexDefs {
		stored := make([]StoredIndexDef, 0, len(defs))
		for _, def := range defs {
			s := StoredIndexDef{Unique: def.Unique, Sparse: def.Sparse}
			for _, key := range def.Keys {
				s.Fields = append(s.Fields, key.Field)
			}
			stored = append(stored, s)
		}
		storageData.IndexDefs[collName] = stored
	}

	msgpackData, err := msgpack.Marshal(storageData)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	compressedData = compressedData[:n]

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()
	if err := WriteHeader(file); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := file.Write(compressedData); err != nil {
		return fmt.Errorf("failed to write compressed data: %w", err)
	}
	return nil
}

// LoadFromFile loads collections and index definitions from a single file.
// A missing file is not an error; the engine starts empty.
func (e *Engine) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := ReadHeader(file); err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	compressedData, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read compressed data: %w", err)
	}
	decompressedData := make([]byte, len(compressedData)*10)
	n, err := lz4.UncompressBlock(compressedData, decompressedData)
	if err != nil {
		return fmt.Errorf("failed to decompress data: %w", err)
	}
	decompressedData = decompressedData[:n]

	var storageData StorageData
	if err := msgpack.Unmarshal(decompressedData, &storageData); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for collName, docs := range storageData.Collections {
		collection := domain.NewCollection(collName)
		for docID, docData := range docs {
			if m, ok := docData.(map[string]interface{}); ok {
				collection.Documents[docID] = domain.Document(m)
			}
		}
		e.collections[collName] = collection
	}
	for collName, stored := range storageData.IndexDefs {
		for _, s := range stored {
			def := domain.IndexDef{Unique: s.Unique, Sparse: s.Sparse}
			for _, field := range s.Fields {
				def.Keys = append(def.Keys, domain.IndexKey{Field: field, Type: 1})
			}
			e.indexDefs[collName] = append(e.indexDefs[collName], def)
			if len(def.Keys) == 1 {
				e.rebuildIndexLocked(collName, def)
			}
		}
	}
	return nil
}

func (e *Engine) rebuildIndexLocked(coll string, def domain.IndexDef) {
	field := def.Keys[0].Field
	if e.indexes[coll] == nil {
		e.indexes[coll] = make(map[string]*Index)
	}
	if _, exists := e.indexes[coll][field]; exists {
		return
	}
	idx := NewIndex(field, def.Unique)
	if c, ok := e.collections[coll]; ok {
		for id, doc := range c.Documents {
			idx.Add(id, doc)
		}
	}
	e.indexes[coll][field] = idx
}

// saveAfterTransaction persists after a write when transaction saves are
// enabled and a data file is configured. Callers hold the write lock.
func (e *Engine) saveAfterTransaction() error {
	if !e.transactionSave || e.dataFile == "" {
		return nil
	}
	if err := e.saveToFileLocked(e.dataFile); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// StartBackgroundWorkers starts the periodic save worker when background
// saves are enabled.
func (e *Engine) StartBackgroundWorkers() {
	if !e.backgroundSave || e.dataFile == "" {
		return
	}
	e.backgroundWg.Add(1)
	go func() {
		defer e.backgroundWg.Done()
		ticker := time.NewTicker(e.saveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.mu.Lock()
				if e.dirty {
					if err := e.saveToFileLocked(e.dataFile); err != nil {
						log.Printf("ERROR: Background save failed: %v", err)
					} else {
						e.dirty = false
					}
				}
				e.mu.Unlock()
			case <-e.stopChan:
				return
			}
		}
	}()
}

// StopBackgroundWorkers stops the background save worker and flushes any
// unsaved changes.
func (e *Engine) StopBackgroundWorkers() {
	close(e.stopChan)
	e.backgroundWg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dirty && e.dataFile != "" {
		if err := e.saveToFileLocked(e.dataFile); err != nil {
			log.Printf("ERROR: Final save failed: %v", err)
		} else {
			e.dirty = false
		}
	}
}
