package service

import "errors"

var (
	ErrOCRDisabled    = errors.New("ocr is not configured")
	ErrIngestDisabled = errors.New("asynchronous ingestion is not configured")
)
