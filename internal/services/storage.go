package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// ObjectStorage stores image bytes under a generated key and returns a
// public URL. Delete takes the public URL back.
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

// CloudinaryStorage implements ObjectStorage on Cloudinary.
type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStorage(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: folder}, nil
}

func (s *CloudinaryStorage) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	// Unique public id so repeated uploads never collide or overwrite
	publicID := uuid.NewString() + "_" + sanitizeFilename(filename)

	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	return result.SecureURL, nil
}

// Delete removes the object the public URL points at. Cloudinary URLs
// look like .../image/upload/v123/<folder>/<public_id>.<ext>.
func (s *CloudinaryStorage) Delete(ctx context.Context, publicURL string) error {
	publicID := publicIDFromURL(publicURL)
	if publicID == "" {
		return fmt.Errorf("cannot derive public id from %q", publicURL)
	}
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}

func publicIDFromURL(publicURL string) string {
	_, after, found := strings.Cut(publicURL, "/upload/")
	if !found {
		return ""
	}
	parts := strings.Split(after, "/")
	// Drop the version segment (v<digits>)
	if len(parts) > 1 && strings.HasPrefix(parts[0], "v") {
		parts = parts[1:]
	}
	id := strings.Join(parts, "/")
	if idx := strings.LastIndex(id, "."); idx > 0 {
		id = id[:idx]
	}
	return id
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
