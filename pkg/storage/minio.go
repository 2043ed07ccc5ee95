package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSource MinIO语料来源实现
// 从对象存储桶读取文档，摄取前下载到本地暂存目录
type MinioSource struct {
	client     *minio.Client   // MinIO客户端
	bucketName string          // 存储桶名称
	stagingDir string          // 本地暂存目录
	filter     ExtensionFilter // 允许摄取的扩展名
}

// MinioConfig MinIO语料来源配置
type MinioConfig struct {
	Endpoint   string   // MinIO服务端点
	AccessKey  string   // 访问密钥ID
	SecretKey  string   // 秘密访问密钥
	UseSSL     bool     // 是否使用SSL
	Bucket     string   // 存储桶名称
	StagingDir string   // 本地暂存目录，为空时使用系统临时目录
	Extensions []string // 允许摄取的扩展名，为空时使用默认集合
}

// NewMinioSource 创建MinIO语料来源实例
func NewMinioSource(cfg MinioConfig) (*MinioSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// 语料桶必须已存在，来源是只读的
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}
	if !exists {
		return nil, fmt.Errorf("corpus bucket does not exist: %s", cfg.Bucket)
	}

	stagingDir := cfg.StagingDir
	if stagingDir == "" {
		stagingDir, err = os.MkdirTemp("", "corpus-staging-")
		if err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %v", err)
		}
	} else {
		if err := os.MkdirAll(stagingDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %v", err)
		}
	}

	return &MinioSource{
		client:     client,
		bucketName: cfg.Bucket,
		stagingDir: stagingDir,
		filter:     NewExtensionFilter(cfg.Extensions),
	}, nil
}

// List 列出存储桶中的所有支持文件
func (s *MinioSource) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo

	objectCh := s.client.ListObjects(
		ctx,
		s.bucketName,
		minio.ListObjectsOptions{Recursive: true},
	)

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}

		if !s.filter.Allows(object.Key) {
			continue
		}

		files = append(files, FileInfo{
			Name:     object.Key,
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
		})
	}

	return files, nil
}

// Open 打开存储桶中的文件内容
func (s *MinioSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(
		ctx,
		s.bucketName,
		name,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}
	return obj, nil
}

// Fetch 下载文件到暂存目录并返回本地路径
func (s *MinioSource) Fetch(ctx context.Context, name string) (string, error) {
	localPath := filepath.Join(s.stagingDir, filepath.Base(name))

	err := s.client.FGetObject(
		ctx,
		s.bucketName,
		name,
		localPath,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return "", fmt.Errorf("failed to download object: %v", err)
	}

	return localPath, nil
}

// Exists 检查存储桶中是否存在指定文件
func (s *MinioSource) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(
		ctx,
		s.bucketName,
		name,
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %v", err)
	}
	return true, nil
}
