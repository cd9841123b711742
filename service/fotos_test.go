package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salchimonster/restaurant-reports/models"
)

func TestFotoStoreSave(t *testing.T) {
	store := NewFotoStore(t.TempDir())

	_, err := store.Save("379001", "otros", "", []Upload{upload("a.jpg", "x")})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = store.Save("379001", FotoEntrega, "", []Upload{{}})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	big := upload("big.jpg", "x")
	big.Size = MaxUploadSize + 1
	_, err = store.Save("379001", FotoEntrega, "", []Upload{big})
	require.ErrorIs(t, err, models.ErrTooLarge)

	saved, err := store.Save("#379001", FotoEntrega, "", []Upload{upload("puerta.jpg", "img")})
	require.NoError(t, err)
	assert.Equal(t, []string{"puerta.jpg"}, saved)

	_, err = store.Save("379001", FotoApelacion, "Didi Food", []Upload{upload("chat.png", "img")})
	require.NoError(t, err)
	_, err = store.Save("379001", FotoApelacion, "", []Upload{upload("otro.png", "img")})
	require.NoError(t, err)

	fotos := store.ForCodigo("379001")
	assert.Equal(t, []string{"/api/orders/379001/fotos/entrega/puerta.jpg"}, fotos.Entrega)
	assert.Equal(t, map[string][]string{
		"Didi Food": {"/api/orders/379001/fotos/apelacion/Didi Food/chat.png"},
		"general":   {"/api/orders/379001/fotos/apelacion/general/otro.png"},
	}, fotos.Apelacion)
	assert.Empty(t, fotos.Respuestas)
}

func TestFotoStorePath(t *testing.T) {
	root := t.TempDir()
	store := NewFotoStore(root)

	_, err := store.Save("R-1", FotoEntrega, "", []Upload{upload("a.jpg", "img")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("no"), 0o644))

	path, err := store.Path("R-1", FotoEntrega, "a.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join("R-1", "entrega", "a.jpg")))

	for _, rest := range []string{"../../secret.txt", "", "missing.jpg"} {
		_, err = store.Path("R-1", FotoEntrega, rest)
		require.ErrorIs(t, err, models.ErrNotFound, rest)
	}
	_, err = store.Path("R-1", "otros", "a.jpg")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, store.Delete("R-1", FotoEntrega, "a.jpg"))
	require.ErrorIs(t, store.Delete("R-1", FotoEntrega, "a.jpg"), models.ErrNotFound)
}

func TestFotoStoreHashFolderFallback(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_379001", FotoEntrega), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_379001", FotoEntrega, "a.jpg"), []byte("img"), 0o644))
	store := NewFotoStore(root)

	assert.Len(t, store.ForCodigo("379001").Entrega, 1)
	assert.True(t, store.HasEntrega(models.Order{CodigoIntegracion: "379001"}))
}

func TestFotoStoreCopyCodigo(t *testing.T) {
	root := t.TempDir()
	store := NewFotoStore(root)

	_, err := store.Save("5764607523034368", FotoEntrega, "", []Upload{upload("a.jpg", "old"), upload("b.jpg", "old")})
	require.NoError(t, err)
	_, err = store.Save("379001", FotoEntrega, "", []Upload{upload("a.jpg", "new")})
	require.NoError(t, err)

	copied, err := store.CopyCodigo("5764607523034368", "#379001")
	require.NoError(t, err)
	assert.Equal(t, 1, copied)

	kept, err := os.ReadFile(filepath.Join(root, "379001", FotoEntrega, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(kept))
	assert.Len(t, store.ForCodigo("379001").Entrega, 2)

	copied, err = store.CopyCodigo("missing", "379001")
	require.NoError(t, err)
	assert.Zero(t, copied)
}

func TestFotoStoreOrganize(t *testing.T) {
	root := t.TempDir()
	store := NewFotoStore(root)

	_, err := store.Save("ident-1", FotoEntrega, "", []Upload{upload("a.jpg", "img")})
	require.NoError(t, err)
	_, err = store.Save("ident-2", FotoEntrega, "", []Upload{upload("b.jpg", "img")})
	require.NoError(t, err)
	_, err = store.Save("R-2", FotoEntrega, "", []Upload{upload("c.jpg", "img")})
	require.NoError(t, err)

	result := store.Organize(map[string]string{"ident-1": "R-1", "ident-2": "R-2"})
	assert.Equal(t, []OrganizeMove{{From: "ident-1", To: "R-1"}, {From: "ident-2", To: "R-2", Merged: true}}, result.Moved)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "Organizadas 2 carpetas", result.Message)

	assert.Len(t, store.ForCodigo("R-1").Entrega, 1)
	assert.Len(t, store.ForCodigo("R-2").Entrega, 2)
	assert.False(t, isDir(filepath.Join(root, "ident-2")))
}
