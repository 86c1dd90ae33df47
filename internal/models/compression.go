package models

// CompressionLevel 压缩级别
type CompressionLevel string

const (
	CompressionLow    CompressionLevel = "low"
	CompressionMedium CompressionLevel = "medium"
	CompressionHigh   CompressionLevel = "high"
)

// ParseCompressionLevel maps exactly "low" and "medium" to themselves and
// anything else, "LOW" included, to high.
func ParseCompressionLevel(s string) CompressionLevel {
	switch CompressionLevel(s) {
	case CompressionLow:
		return CompressionLow
	case CompressionMedium:
		return CompressionMedium
	}
	return CompressionHigh
}

// Quality 对应的图像质量
func (l CompressionLevel) Quality() int {
	switch l {
	case CompressionLow:
		return 90
	case CompressionMedium:
		return 70
	}
	return 50
}
