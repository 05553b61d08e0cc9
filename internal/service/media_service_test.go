package service

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eventsocial/internal/config"
	"eventsocial/internal/models"
	"eventsocial/internal/storage"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMediaFixture(t *testing.T, cfg *config.Config) (*MediaService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "http://localhost/media")
	require.NoError(t, err)
	return NewMediaService(store, cfg), dir
}

func TestMediaService_ImagesAreNormalizedToWebP(t *testing.T) {
	svc, dir := newMediaFixture(t, &config.Config{})

	stored, err := svc.Upload(context.Background(), FolderPosts, MediaFile{
		Filename:    "big.png",
		ContentType: "image/png",
		Data:        testutil.PNGBytes(t, 3000, 1500),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeImage, stored.Type)
	assert.Equal(t, "image/webp", stored.ContentType)

	rel := strings.TrimPrefix(stored.URL, "http://localhost/media/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
	assert.Equal(t, MasterMaxSize, cfg.Width)
	assert.Equal(t, MasterMaxSize/2, cfg.Height)
}

func TestMediaService_SameContentSameKey(t *testing.T) {
	svc, _ := newMediaFixture(t, &config.Config{})
	file := MediaFile{Filename: "a.png", Data: testutil.PNGBytes(t, 20, 20)}

	a, err := svc.Upload(context.Background(), FolderPosts, file)
	require.NoError(t, err)
	b, err := svc.Upload(context.Background(), FolderPosts, file)
	require.NoError(t, err)
	assert.Equal(t, a.URL, b.URL)
}

func TestMediaService_Rejections(t *testing.T) {
	svc, _ := newMediaFixture(t, &config.Config{MaxImageMB: 1})

	_, err := svc.Upload(context.Background(), FolderPosts, MediaFile{})
	assertValidationError(t, err)

	_, err = svc.Upload(context.Background(), FolderPosts, MediaFile{Data: []byte("plain text, not media")})
	assertValidationError(t, err)

	big := append(testutil.PNGBytes(t, 4, 4), make([]byte, 2<<20)...)
	_, err = svc.Upload(context.Background(), FolderPosts, MediaFile{Data: big})
	assertValidationError(t, err)

	// Corrupt PNG: valid signature, garbage body.
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...)
	_, err = svc.Upload(context.Background(), FolderPosts, MediaFile{Data: corrupt})
	assertValidationError(t, err)

	_, err = svc.UploadImage(context.Background(), FolderProfiles, MediaFile{ContentType: "video/quicktime", Data: []byte("moov-ish")})
	assertValidationError(t, err)
}

func TestMediaService_VideoPassthrough(t *testing.T) {
	svc, dir := newMediaFixture(t, &config.Config{})

	// Declared type is used when sniffing cannot identify the container.
	data := []byte("\x00\x00\x00\x14qt  not-really-a-movie")
	stored, err := svc.Upload(context.Background(), FolderChats, MediaFile{Filename: "clip.mov", ContentType: "video/quicktime", Data: data})
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeVideo, stored.Type)
	assert.True(t, strings.HasSuffix(stored.URL, ".mov"))

	rel := strings.TrimPrefix(stored.URL, "http://localhost/media/")
	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestMediaService_UploadAllLimit(t *testing.T) {
	svc, _ := newMediaFixture(t, &config.Config{})
	_, err := svc.UploadAll(context.Background(), FolderPosts, make([]MediaFile, MaxPostMedia+1))
	assertValidationError(t, err)
}
