package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnreadableDocument 文档无法解析错误
// 单个文档解析失败时返回（损坏、加密、格式不支持等），
// 调用方应记录日志并跳过该文档，不中断整个语料库的摄取
var ErrUnreadableDocument = errors.New("unreadable document")

// Page 文档的一个物理页
// Number是加载器内部的0起始页码，对外暴露前由Tagger转换为1起始
type Page struct {
	Number int    // 页码（0起始）
	Text   string // 该页的纯文本内容
}

// Loader 文档加载器接口
// 负责将一个文档文件解析为按页排列的纯文本序列
type Loader interface {
	// Load 解析文档，按页序返回每页的文本
	Load(filePath string) ([]Page, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// LoaderFactory 加载器工厂函数，根据文件类型创建对应的加载器
func LoaderFactory(filePath string) (Loader, error) {
	contentType := detectContentType(filePath)

	switch contentType {
	case PDF:
		return NewPDFLoader(), nil
	case Markdown:
		return NewMarkdownLoader(), nil
	case PlainText:
		return NewPlainTextLoader(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q",
			ErrUnreadableDocument, filepath.Ext(filePath))
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}
