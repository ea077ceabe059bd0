// utils/r2.go
package utils

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Presign *s3.PresignClient
var r2VideoBucket string
var r2ImageBucket string
var cdnBaseURL string

// InitR2 builds the presign client against Cloudflare R2. Battle videos,
// cover images, and vote signatures are uploaded by the browser straight to
// R2 through presigned PUT URLs; this service only ever stores object keys.
func InitR2() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	r2VideoBucket = os.Getenv("R2_VIDEO_BUCKET_NAME")
	r2ImageBucket = os.Getenv("R2_IMAGE_BUCKET_NAME")
	cdnBaseURL = os.Getenv("CDN_BASE_URL")
	if cdnBaseURL == "" {
		cdnBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Presign = s3.NewPresignClient(s3.NewFromConfig(cfg))
	return nil
}

// PresignVideoPut returns a presigned PUT URL for a battle video upload.
// key example: "videos/<uuid>.mp4"
func PresignVideoPut(key, contentType string) (string, error) {
	return presignPut(r2VideoBucket, key, contentType)
}

// PresignImagePut returns a presigned PUT URL for a cover or signature image.
// key example: "images/<uuid>.jpeg"
func PresignImagePut(key string) (string, error) {
	return presignPut(r2ImageBucket, key, "image/jpeg")
}

func presignPut(bucket, key, contentType string) (string, error) {
	req, err := r2Presign.PresignPutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// PublicURL returns the CDN URL for an uploaded object key.
func PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", cdnBaseURL, key)
}
