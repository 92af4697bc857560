// SPDX-License-Identifier: LGPL-3.0-or-later

package secrets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	keys := map[string]*Secret{
		"did:example:mediator#sign-1": {ID: "did:example:mediator#sign-1", Type: KeyTypeEd25519, Material: []byte{1, 2, 3, 4}},
	}
	require.NoError(t, SaveFile(path, keys))

	resolver, err := LoadFile(path)
	require.NoError(t, err)

	got, err := resolver.GetSecret(context.Background(), "did:example:mediator#sign-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, KeyTypeEd25519, got.Type)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Material)
}

func TestLoadFileRejectsMissingPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
