package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	appconfig "safetrack-backend/internal/config"
	"safetrack-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const avatarURLExpiry = 15 * time.Minute

// ProfileService handles account profile updates and avatar uploads
type ProfileService struct {
	users    UserStore
	s3Client *s3.Client
	s3Bucket string
}

// NewProfileService creates a new profile service
func NewProfileService(users UserStore, cfg appconfig.AWSConfig) (*ProfileService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &ProfileService{users: users, s3Client: client, s3Bucket: cfg.S3Bucket}, nil
}

// Get returns the caller's profile
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfileInput carries the editable profile fields. Nil fields are
// left unchanged.
type UpdateProfileInput struct {
	DisplayName *string
	Phone       *string
	PhotoURL    *string
}

// Update applies the given profile changes
func (s *ProfileService) Update(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		user.DisplayName = *in.DisplayName
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.PhotoURL != nil {
		if *in.PhotoURL != "" {
			if _, err := url.ParseRequestURI(*in.PhotoURL); err != nil {
				return nil, fmt.Errorf("invalid photo URL: %w", err)
			}
		}
		user.PhotoURL = *in.PhotoURL
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AvatarUpload is a pre-signed PUT URL a client uploads its avatar to.
type AvatarUpload struct {
	UploadURL string `json:"upload_url"`
	PhotoURL  string `json:"photo_url"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignAvatarUpload generates a pre-signed URL for uploading the caller's
// avatar image.
func (s *ProfileService) PresignAvatarUpload(ctx context.Context, userID, contentType string) (*AvatarUpload, error) {
	key := fmt.Sprintf("avatars/%s.jpg", userID)

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(avatarURLExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign avatar upload: %w", err)
	}

	return &AvatarUpload{
		UploadURL: request.URL,
		PhotoURL:  fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.s3Bucket, key),
		ExpiresIn: int(avatarURLExpiry.Seconds()),
	}, nil
}

// DeleteAccount removes the caller's account. Their avatar object is
// best-effort deleted; sessions they administer go with the user row.
func (s *ProfileService) DeleteAccount(ctx context.Context, userID string) error {
	key := fmt.Sprintf("avatars/%s.jpg", userID)
	if _, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.s3Bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to delete avatar object")
	}
	return s.users.Delete(ctx, userID)
}
