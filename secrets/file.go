// SPDX-License-Identifier: LGPL-3.0-or-later

package secrets

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// fileRecord is one secret's on-disk JSON shape; material is base64 so
// the file stays plain JSON rather than needing a binary encoding.
type fileRecord struct {
	ID       string  `json:"id"`
	Type     KeyType `json:"type"`
	Material string  `json:"material"`
}

// LoadFile reads a JSON secrets file (spec §6 "mediator DID + secrets
// file") into a MemoryResolver. The file is meant for single-node
// deployments; a networked secrets vault is out of scope.
func LoadFile(path string) (*MemoryResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secrets: read %s: %w", path, err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("secrets: parse %s: %w", path, err)
	}

	r := NewMemoryResolver()
	for _, rec := range records {
		material, err := base64.StdEncoding.DecodeString(rec.Material)
		if err != nil {
			return nil, fmt.Errorf("secrets: decode material for %s: %w", rec.ID, err)
		}
		r.Put(&Secret{ID: rec.ID, Type: rec.Type, Material: material})
	}
	return r, nil
}

// SaveFile writes every secret held in keys (kid -> Secret) to path as
// JSON, the format genkey produces and LoadFile reads back.
func SaveFile(path string, keys map[string]*Secret) error {
	records := make([]fileRecord, 0, len(keys))
	for _, s := range keys {
		records = append(records, fileRecord{
			ID:       s.ID,
			Type:     s.Type,
			Material: base64.StdEncoding.EncodeToString(s.Material),
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("secrets: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("secrets: write %s: %w", path, err)
	}
	return nil
}
