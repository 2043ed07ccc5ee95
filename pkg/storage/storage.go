package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// FileInfo 语料文件元数据结构
type FileInfo struct {
	Name     string // 文件名
	Size     int64  // 文件大小(字节)
	MimeType string // 文件MIME类型
}

// Source 语料来源接口
// 摄取编排器从语料来源枚举并读取文档，语料来源是只读的。
// 可以有不同实现(本地目录、MinIO等)
type Source interface {
	// List 列出语料中的所有文件
	List(ctx context.Context) ([]FileInfo, error)

	// Open 打开指定文件的内容
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Fetch 获取文件在本地文件系统上的路径
	// 远端实现会先把文件下载到暂存目录
	Fetch(ctx context.Context, name string) (string, error)

	// Exists 检查文件是否存在
	Exists(ctx context.Context, name string) (bool, error)
}

// ExtensionFilter 允许摄取的文件扩展名集合
type ExtensionFilter map[string]bool

// SupportedExtensions 默认可摄取的文件扩展名
var SupportedExtensions = ExtensionFilter{
	".pdf":      true,
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// NewExtensionFilter 根据配置的扩展名列表构造过滤器
// 列表为空时回退到默认集合；扩展名大小写不敏感，前导点可省略
func NewExtensionFilter(exts []string) ExtensionFilter {
	if len(exts) == 0 {
		return SupportedExtensions
	}

	filter := make(ExtensionFilter, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		filter[ext] = true
	}
	if len(filter) == 0 {
		return SupportedExtensions
	}
	return filter
}

// Allows 判断文件名是否属于允许摄取的类型
func (f ExtensionFilter) Allows(name string) bool {
	return f[strings.ToLower(filepath.Ext(name))]
}

// IsSupported 判断文件是否为默认可摄取的类型
func IsSupported(name string) bool {
	return SupportedExtensions.Allows(name)
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
