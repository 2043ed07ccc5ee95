package document

import (
	"fmt"
	"os"
)

// PlainTextLoader 纯文本加载器
// 纯文本没有分页概念，整个文件视为单独一页
type PlainTextLoader struct{}

// NewPlainTextLoader 创建一个新的纯文本加载器
func NewPlainTextLoader() Loader {
	return &PlainTextLoader{}
}

// Load 读取纯文本文件，作为单页返回
func (l *PlainTextLoader) Load(filePath string) ([]Page, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read text file: %v", ErrUnreadableDocument, err)
	}

	return []Page{{Number: 0, Text: string(content)}}, nil
}
