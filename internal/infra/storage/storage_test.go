package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

func TestMemoryStore_CreateOpenRelease(t *testing.T) {
	m := NewMemory("")
	ctx := context.Background()
	src := []byte{0xff, 0xd8}

	p, err := m.Create(ctx, domain.File{Name: "a.jpg", Data: src})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.URL, DefaultURLPrefix))
	assert.Equal(t, DefaultURLPrefix+p.Key, p.URL)

	src[0] = 0 // store keeps its own copy
	data, ct, err := m.Open(p.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Release(ctx, p))
	require.NoError(t, m.Release(ctx, p))
	_, _, err = m.Open(p.Key)
	assert.ErrorIs(t, err, ErrPreviewNotFound)
	assert.Zero(t, m.Len())
	assert.NoError(t, m.Check(ctx))
}

func TestMemoryStore_DistinctKeys(t *testing.T) {
	m := NewMemory("/p/")
	a, _ := m.Create(context.Background(), domain.File{Name: "x.png"})
	b, _ := m.Create(context.Background(), domain.File{Name: "x.png"})
	assert.NotEqual(t, a.Key, b.Key)
	assert.True(t, strings.HasPrefix(a.URL, "/p/"))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		file domain.File
		want string
	}{
		{domain.File{Name: "a.bin", ContentType: "image/heic"}, "image/heic"},
		{domain.File{Name: "A.JPG"}, "image/jpeg"},
		{domain.File{Name: "mole.png"}, "image/png"},
		{domain.File{Name: "mole.webp"}, "image/webp"},
		{domain.File{Name: "noext"}, "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentType(tt.file), tt.file.Name)
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "previews/id1/mole.jpg", ObjectKey("previews", "id1", "mole.jpg"))
	assert.Equal(t, "previews/id1/evil.jpg", ObjectKey("previews", "id1", "../../evil.jpg"))
	assert.Equal(t, "id1/x.png", ObjectKey("", "id1", `C:\Users\me\x.png`))
	assert.Equal(t, "id1/image", ObjectKey("", "id1", ""))
}
