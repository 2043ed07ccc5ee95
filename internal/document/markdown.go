package document

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownLoader Markdown文档加载器
// Markdown没有分页概念，整个文件视为单独一页
type MarkdownLoader struct{}

// NewMarkdownLoader 创建新的Markdown加载器
func NewMarkdownLoader() Loader {
	return &MarkdownLoader{}
}

// Load 解析Markdown文件并提取纯文本内容
func (l *MarkdownLoader) Load(filePath string) ([]Page, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read markdown file: %v", ErrUnreadableDocument, err)
	}

	// 创建Markdown解析器
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	// 解析Markdown内容
	doc := mdParser.Parse(content)

	// 渲染为HTML后剥离标签，得到纯文本
	htmlFlags := html.CommonFlags
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	htmlContent := markdown.Render(doc, renderer)

	text := stripHTMLTags(string(htmlContent))
	return []Page{{Number: 0, Text: text}}, nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTMLTags 从HTML中提取纯文本
func stripHTMLTags(htmlText string) string {
	text := htmlTagPattern.ReplaceAllString(htmlText, "")

	// 还原常见的HTML实体
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	text = replacer.Replace(text)

	// 压缩多余空行
	lines := strings.Split(text, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
