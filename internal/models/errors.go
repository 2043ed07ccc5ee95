package models

import "errors"

var (
	// ErrDocumentNotFound 文档记录不存在错误
	ErrDocumentNotFound = errors.New("document not found")

	// ErrIngestRunNotFound 摄取轮次记录不存在错误
	ErrIngestRunNotFound = errors.New("ingest run not found")
)
