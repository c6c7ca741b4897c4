package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config はS3互換ストレージの接続設定。
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // MinIO等の互換エンドポイント。空の場合はAWS
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string // 指定時は取得用URLのベースとして使用する
}

// s3API はS3Storeが使用するS3クライアントの操作。
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// uploaderAPI はS3Storeが使用するアップロード操作。
type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store はS3互換のオブジェクトストレージ。
// 大きなファイルはmanager.Uploaderによりマルチパートでアップロードされる。
type S3Store struct {
	client   s3API
	uploader uploaderAPI
	cfg      S3Config
}

// NewS3Store はS3Configからクライアントを構築してS3Storeを生成する。
// アクセスキーが指定されない場合はAWS標準の認証情報チェーンを使用する。
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(client, manager.NewUploader(client), cfg), nil
}

func newS3Store(client s3API, uploader uploaderAPI, cfg S3Config) *S3Store {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &S3Store{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
	}
}

// Put はオブジェクトをアップロードし、取得用URLを返す。
func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	if !validKey(obj.Key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, obj.Key)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(obj.Key),
		Body:   obj.Body,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if obj.Size >= 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object to s3: %w", err)
	}
	return s.objectURL(obj.Key), nil
}

// objectURL はキーに対応する取得用URLを組み立てる。
func (s *S3Store) objectURL(key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return joinURL(s.cfg.PublicBaseURL, key)
	case s.cfg.Endpoint != "" && s.cfg.UsePathStyle:
		return joinURL(s.cfg.Endpoint+"/"+s.cfg.Bucket, key)
	case s.cfg.Endpoint != "":
		scheme, host, found := strings.Cut(s.cfg.Endpoint, "://")
		if !found {
			return joinURL(s.cfg.Endpoint+"/"+s.cfg.Bucket, key)
		}
		return joinURL(scheme+"://"+s.cfg.Bucket+"."+host, key)
	case s.cfg.UsePathStyle:
		return joinURL(fmt.Sprintf("https://s3.%s.amazonaws.com/%s", s.cfg.Region, s.cfg.Bucket), key)
	default:
		return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region), key)
	}
}

// Ping はHeadBucketでバケットへの疎通を確認する。
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to reach s3 bucket %q: %w", s.cfg.Bucket, err)
	}
	return nil
}

// Name はバックエンド名を返す。
func (s *S3Store) Name() string {
	return "s3"
}

var _ ObjectStore = (*S3Store)(nil)
