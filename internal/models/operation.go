package models

import (
	"fmt"
	"strings"
)

// Operation 支持的 PDF 操作
type Operation string

const (
	OpImagesToPDF Operation = "img_to_pdf"
	OpPDFToImages Operation = "pdf_to_img"
	OpMergePDF    Operation = "merge_pdf"
	OpSplitPDF    Operation = "split_pdf"
	OpCompressPDF Operation = "compress_pdf"
)

// OpPDFInfo reads metadata only; it is not a conversion and is not listed in
// Operations.
const OpPDFInfo Operation = "pdf_info"

// Operations lists every operation in route order.
var Operations = []Operation{OpImagesToPDF, OpPDFToImages, OpMergePDF, OpSplitPDF, OpCompressPDF}

// ParseOperation 解析操作名称
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// OutputPrefix is the artifact file name prefix, e.g. merged_1700000000.pdf
func (o Operation) OutputPrefix() string {
	switch o {
	case OpImagesToPDF:
		return "images_to_pdf"
	case OpPDFToImages:
		return "pdf_images"
	case OpMergePDF:
		return "merged"
	case OpSplitPDF:
		return "split"
	case OpCompressPDF:
		return "compressed"
	}
	return string(o)
}

// OutputExt 输出文件扩展名
func (o Operation) OutputExt() string {
	if o == OpPDFToImages {
		return ".zip"
	}
	return ".pdf"
}

// ContentType 输出文件 MIME 类型
func (o Operation) ContentType() string {
	if o == OpPDFToImages {
		return "application/zip"
	}
	return "application/pdf"
}

// UploadField 上传字段名
func (o Operation) UploadField() string {
	switch o {
	case OpImagesToPDF:
		return "images"
	case OpMergePDF:
		return "pdfs"
	}
	return "pdf"
}

// MultiUpload reports whether the operation takes several files
func (o Operation) MultiUpload() bool {
	return o == OpImagesToPDF || o == OpMergePDF
}

// NeedsRange reports whether the operation is guarded by a page range
func (o Operation) NeedsRange() bool {
	return o == OpPDFToImages || o == OpSplitPDF
}
