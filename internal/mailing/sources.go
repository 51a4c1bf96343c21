package mailing

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/pkg/logger"
)

//go:embed templates/*.liquid
var builtinTemplates embed.FS

// DefaultTemplates returns the built-in source of every email type.
func DefaultTemplates() (map[domain.EmailType]string, error) {
	out := make(map[domain.EmailType]string, len(domain.AllEmailTypes))
	for _, t := range domain.AllEmailTypes {
		b, err := builtinTemplates.ReadFile("templates/" + string(t) + ".liquid")
		if err != nil {
			return nil, fmt.Errorf("read built-in template %s: %w", t, err)
		}
		out[t] = string(b)
	}
	return out, nil
}

// TemplateSource supplies optional overrides for built-in templates.
// Fetch returns found=false when the source has no override for name.
type TemplateSource interface {
	Fetch(ctx context.Context, name domain.EmailType) (src string, found bool, err error)
}

// LoadTemplates merges overrides from src over the built-in set. A failing
// override is logged and the built-in template kept.
func LoadTemplates(ctx context.Context, src TemplateSource) (map[domain.EmailType]string, error) {
	out, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if src == nil {
		return out, nil
	}
	for _, t := range domain.AllEmailTypes {
		body, found, err := src.Fetch(ctx, t)
		if err != nil {
			logger.Warn("template override unavailable, using built-in", "template", string(t), "error", err.Error())
			continue
		}
		if found {
			logger.Info("template override loaded", "template", string(t))
			out[t] = body
		}
	}
	return out, nil
}

// ObjectGetter is the subset of the S3 client used for template overrides.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3TemplateSource reads overrides from s3://bucket/prefix/<name>.liquid.
type S3TemplateSource struct {
	client ObjectGetter
	bucket string
	prefix string
}

func NewS3TemplateSource(client ObjectGetter, bucket, prefix string) *S3TemplateSource {
	return &S3TemplateSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3TemplateSource) key(name domain.EmailType) string {
	return path.Join(s.prefix, string(name)+".liquid")
}

func (s *S3TemplateSource) Fetch(ctx context.Context, name domain.EmailType) (string, bool, error) {
	key := s.key(name)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || strings.Contains(err.Error(), "NotFound") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("S3 GetObject %s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("reading S3 object body: %w", err)
	}
	return string(body), true, nil
}
