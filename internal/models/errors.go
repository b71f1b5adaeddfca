package models

import "errors"

var (
	// ErrConversionNotFound 转换记录不存在错误
	ErrConversionNotFound = errors.New("conversion not found")

	// ErrInvalidConversionStatus 无效的转换状态错误
	ErrInvalidConversionStatus = errors.New("invalid conversion status")

	// ErrConversionNotReady 转换尚未完成，结果不可下载
	ErrConversionNotReady = errors.New("conversion not completed")
)
