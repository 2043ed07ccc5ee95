package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// 提取出的文本文件名中的页码，如 "xxx_page_3.txt"
var pageNumberPattern = regexp.MustCompile(`(\d+)\.txt$`)

// PDFLoader PDF文档加载器
// 使用pdfcpu逐页提取文本内容
type PDFLoader struct{}

// NewPDFLoader 创建一个新的PDF加载器
func NewPDFLoader() Loader {
	return &PDFLoader{}
}

// Load 解析PDF文件并按页提取文本内容
func (l *PDFLoader) Load(filePath string) ([]Page, error) {
	// 创建临时目录用于存放提取的文本
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// 使用默认配置
	conf := model.NewDefaultConfiguration()

	// 提取所有页面的文本到临时目录，每页一个txt文件
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("%w: failed to extract text from %s: %v",
			ErrUnreadableDocument, filepath.Base(filePath), err)
	}

	// 读取提取出来的txt文件
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %v", err)
	}

	// 从文件名解析出页码，按页码排序
	// 不能直接按文件名排序：超过9页时字典序与页序不一致
	type extractedPage struct {
		pageNr int
		path   string
	}
	var extracted []extractedPage
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		m := pageNumberPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		nr, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		extracted = append(extracted, extractedPage{
			pageNr: nr,
			path:   filepath.Join(tmpDir, e.Name()),
		})
	}
	sort.Slice(extracted, func(i, j int) bool {
		return extracted[i].pageNr < extracted[j].pageNr
	})

	var pages []Page
	for _, ep := range extracted {
		data, err := os.ReadFile(ep.path)
		if err != nil {
			continue
		}
		pages = append(pages, Page{
			Number: ep.pageNr - 1, // 保留物理页码（0起始），空白页不挤占后续页的编号
			Text:   string(data),
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no text content found in %s",
			ErrUnreadableDocument, filepath.Base(filePath))
	}
	return pages, nil
}
