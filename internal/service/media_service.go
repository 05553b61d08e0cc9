package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"mime"
	"net/http"
	"strings"

	"eventsocial/internal/config"
	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/observability"
	"eventsocial/internal/storage"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel/attribute"
	_ "golang.org/x/image/webp" // register the WebP decoder
)

const (
	DefaultMaxImageMB = 10
	DefaultMaxVideoMB = 50
	MasterMaxSize     = 2048
	WebPQuality       = 75

	// MaxPostMedia is the number of files a single post can carry.
	MaxPostMedia = 5
)

// Upload folders.
const (
	FolderPosts    = "posts"
	FolderProfiles = "profiles"
	FolderChats    = "chats"
)

// MediaFile is an uploaded file as received from a multipart form.
type MediaFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StoredMedia is the result of a successful upload.
type StoredMedia struct {
	URL         string             `json:"mediaUrl"`
	Type        models.MessageType `json:"type"`
	ContentType string             `json:"contentType"`
}

// MediaService normalizes uploads and hands them to the object store. Images
// are re-encoded as WebP no larger than MasterMaxSize on either side; videos
// are stored as received.
type MediaService struct {
	store    storage.Store
	maxImage int64
	maxVideo int64
}

func NewMediaService(store storage.Store, cfg *config.Config) *MediaService {
	imageMB, videoMB := DefaultMaxImageMB, DefaultMaxVideoMB
	if cfg != nil {
		if cfg.MaxImageMB > 0 {
			imageMB = cfg.MaxImageMB
		}
		if cfg.MaxVideoMB > 0 {
			videoMB = cfg.MaxVideoMB
		}
	}
	return &MediaService{
		store:    store,
		maxImage: int64(imageMB) << 20,
		maxVideo: int64(videoMB) << 20,
	}
}

// Upload stores an image or a video under folder.
func (s *MediaService) Upload(ctx context.Context, folder string, f MediaFile) (stored *StoredMedia, err error) {
	if len(f.Data) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	span, ctx := observability.NewSpan(ctx, "media.upload")
	defer func() {
		span.SetError(err)
		span.End()
	}()

	detected := detectContentType(f)
	span.AddAttributes(
		attribute.String("media.folder", folder),
		attribute.String("media.content_type", detected),
		attribute.Int("media.size", len(f.Data)),
	)
	switch {
	case isAllowedImageMIME(detected):
		return s.storeImage(ctx, folder, f)
	case isAllowedVideoMIME(detected):
		return s.storeVideo(ctx, folder, f, detected)
	default:
		return nil, models.NewValidationError("Unsupported file type")
	}
}

// UploadImage is Upload restricted to images.
func (s *MediaService) UploadImage(ctx context.Context, folder string, f MediaFile) (*StoredMedia, error) {
	if len(f.Data) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if !isAllowedImageMIME(detectContentType(f)) {
		return nil, models.NewValidationError("Invalid image type")
	}
	return s.storeImage(ctx, folder, f)
}

// UploadAll stores up to MaxPostMedia files and returns their URLs in order.
func (s *MediaService) UploadAll(ctx context.Context, folder string, files []MediaFile) ([]string, error) {
	if len(files) > MaxPostMedia {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d media files are allowed", MaxPostMedia))
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		m, err := s.Upload(ctx, folder, f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, m.URL)
	}
	return urls, nil
}

func (s *MediaService) storeImage(ctx context.Context, folder string, f MediaFile) (*StoredMedia, error) {
	if int64(len(f.Data)) > s.maxImage {
		return nil, models.NewValidationError(fmt.Sprintf("Image too large (max %dMB)", s.maxImage>>20))
	}

	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	b := img.Bounds()
	if b.Dx() > MasterMaxSize || b.Dy() > MasterMaxSize {
		img = imaging.Fit(img, MasterMaxSize, MasterMaxSize, imaging.Lanczos)
	}

	encoded, err := encodeWebP(img, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	key := objectKey(folder, encoded, ".webp")
	url, err := s.store.Put(ctx, key, "image/webp", encoded)
	if err != nil {
		middleware.Ctx(ctx).Error().Err(err).Str("key", key).Msg("image upload failed")
		return nil, models.NewInternalError(err)
	}
	return &StoredMedia{URL: url, Type: models.MessageTypeImage, ContentType: "image/webp"}, nil
}

func (s *MediaService) storeVideo(ctx context.Context, folder string, f MediaFile, contentType string) (*StoredMedia, error) {
	if int64(len(f.Data)) > s.maxVideo {
		return nil, models.NewValidationError(fmt.Sprintf("Video too large (max %dMB)", s.maxVideo>>20))
	}
	key := objectKey(folder, f.Data, videoExtension(contentType))
	url, err := s.store.Put(ctx, key, contentType, f.Data)
	if err != nil {
		middleware.Ctx(ctx).Error().Err(err).Str("key", key).Msg("video upload failed")
		return nil, models.NewInternalError(err)
	}
	return &StoredMedia{URL: url, Type: models.MessageTypeVideo, ContentType: contentType}, nil
}

// objectKey names objects by content hash so identical uploads share a key.
func objectKey(folder string, content []byte, ext string) string {
	sum := sha256.Sum256(content)
	h := hex.EncodeToString(sum[:])
	return fmt.Sprintf("%s/%s/%s%s", folder, h[:2], h, ext)
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectContentType sniffs the payload. Containers the sniffer does not
// know fall back to the declared type.
func detectContentType(f MediaFile) string {
	detected := normalizeContentType(http.DetectContentType(f.Data))
	if detected == "application/octet-stream" {
		if declared := normalizeContentType(f.ContentType); isAllowedVideoMIME(declared) {
			return declared
		}
	}
	return detected
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func isAllowedVideoMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "video/mp4", "video/webm", "video/quicktime":
		return true
	default:
		return false
	}
}

func videoExtension(contentType string) string {
	switch contentType {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
