package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const mediaURLTTL = 15 * time.Minute

// SpacesService serves scene and lore media out of a DigitalOcean Spaces
// bucket via presigned URLs, so media never transits the bot process.
type SpacesService struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	region    string
	MediaRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, mediaRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &SpacesService{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    bucket,
		region:    region,
		MediaRoot: strings.TrimPrefix(mediaRoot, "/"),
	}, nil
}

// MediaURL presigns a GET for the given media key. The URL is valid for
// mediaURLTTL; callers cache it for less than that.
func (s *SpacesService) MediaURL(ctx context.Context, mediaKey string) (string, error) {
	if mediaKey == "" {
		return "", nil
	}

	key := mediaKey
	if s.MediaRoot != "" && !strings.HasPrefix(key, s.MediaRoot+"/") {
		key = s.MediaRoot + "/" + strings.TrimPrefix(key, "/")
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(mediaURLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign media %s: %w", key, err)
	}

	return req.URL, nil
}

// MediaExists reports whether the key is actually in the bucket, for content
// tooling that validates scene rows before activating them.
func (s *SpacesService) MediaExists(ctx context.Context, mediaKey string) (bool, error) {
	key := mediaKey
	if s.MediaRoot != "" && !strings.HasPrefix(key, s.MediaRoot+"/") {
		key = s.MediaRoot + "/" + strings.TrimPrefix(key, "/")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
