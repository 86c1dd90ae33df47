package document

// Processor 文档处理器接口
type Processor interface {
	// CanProcess 检查是否可以处理指定MIME类型的文件
	CanProcess(mimeType string) bool

	// Close 清理资源
	Close() error
}
