// Package storage puts company uploads into an S3 bucket and hands back
// their public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind is what an upload is used for.
type Kind string

const (
	KindLogo           Kind = "logo"
	KindExecutivePhoto Kind = "executive_photo"
	KindPitchDeck      Kind = "pitch_deck"
	KindNewsThumbnail  Kind = "news_thumbnail"
)

const (
	MaxImageSize = 5 << 20
	MaxDeckSize  = 10 << 20
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var deckTypes = map[string]string{
	".pdf":  "application/pdf",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

const oleStorage = "application/x-ole-storage"

// ParseKind validates a kind taken from a request path.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLogo, KindExecutivePhoto, KindPitchDeck, KindNewsThumbnail:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown upload kind %q", e.ErrInvalidInput, s)
	}
}

// ObjectAPI is the part of the S3 client the store calls.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicBaseURL prefixes object keys in returned URLs. Defaults to the
	// bucket's virtual-hosted S3 URL.
	PublicBaseURL string
}

// Object describes a stored upload.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Store struct {
	api     ObjectAPI
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set, the default chain otherwise.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return NewWithClient(client, cfg.Bucket, baseURL, logger), nil
}

func NewWithClient(api ObjectAPI, bucket, baseURL string, logger *zap.Logger) *Store {
	return &Store{
		api:     api,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("storage"),
	}
}

// Upload checks size and content type and stores the file under
// companies/<id>/<kind>/<uuid><ext>.
func (s *Store) Upload(ctx context.Context, companyID uuid.UUID, kind Kind, filename string, r io.Reader) (*Object, error) {
	limit := int64(MaxImageSize)
	if kind == KindPitchDeck {
		limit = MaxDeckSize
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		verr := &e.ValidationError{}
		verr.Add("file", "File", fmt.Sprintf("must be at most %d MB", limit>>20))
		return nil, verr
	}
	if len(data) == 0 {
		verr := &e.ValidationError{}
		verr.Add("file", "File", "is empty")
		return nil, verr
	}

	contentType, ext, err := detect(kind, filename, data)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("companies/%s/%s/%s%s", companyID, kind, uuid.New(), ext)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	s.logger.Info("upload stored", zap.String("key", key), zap.Int("size", len(data)))
	return &Object{Key: key, URL: s.baseURL + "/" + key, ContentType: contentType, Size: int64(len(data))}, nil
}

// DeleteURL removes the object behind a URL this store returned. URLs
// from elsewhere are ignored.
func (s *Store) DeleteURL(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return nil
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}
	return nil
}

func detect(kind Kind, filename string, data []byte) (contentType, ext string, err error) {
	mtype := mimetype.Detect(data)
	if kind != KindPitchDeck {
		for ct, imgExt := range imageTypes {
			if mtype.Is(ct) {
				return ct, imgExt, nil
			}
		}
		return "", "", typeError("must be a JPEG, PNG, WebP or GIF image")
	}

	ext = strings.ToLower(path.Ext(filename))
	contentType, ok := deckTypes[ext]
	if !ok {
		return "", "", typeError("must be a PDF, PPT or PPTX file")
	}
	match := mtype.Is(contentType)
	// Legacy decks often keep their class id past the sniffed prefix, so a
	// bare OLE container is accepted for .ppt. Other Office types are not.
	if ext == ".ppt" && mtype.Is(oleStorage) {
		match = true
	}
	if !match {
		return "", "", typeError("content does not match the file extension")
	}
	return contentType, ext, nil
}

func typeError(msg string) error {
	verr := &e.ValidationError{}
	verr.Add("file", "File", msg)
	return verr
}
