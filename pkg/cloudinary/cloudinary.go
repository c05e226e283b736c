// Package cloudinary archives original answer-sheet scans so evaluations can
// be audited against the source images later.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Storage implements the upload service's FileStorage interface.
type Storage struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary storage instance.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Storage{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores a scan and returns its secure URL. The name may carry slashes
// (course/sheet type/roll number); they become Cloudinary folders.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	folder := strings.Trim(s.folder, "/")
	publicID := buildPublicID(name)

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload scan: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("scan archived to cloudinary")

	return result.SecureURL, nil
}

func buildPublicID(name string) string {
	clean := strings.Trim(path.Clean(strings.ReplaceAll(name, `\`, "/")), "/")
	clean = strings.TrimSuffix(clean, path.Ext(clean))

	clean = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '/' {
			return r
		}
		return '-'
	}, clean)

	clean = strings.Trim(clean, "-/")
	if clean == "" {
		clean = fmt.Sprintf("scan-%d", time.Now().Unix())
	}

	return fmt.Sprintf("%s-%d", clean, time.Now().Unix())
}
