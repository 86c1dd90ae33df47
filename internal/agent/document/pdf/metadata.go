package pdf

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/pdf-toolkit/internal/models"
)

// ExtractMetadata 提取文档元数据
func (p *Processor) ExtractMetadata(ctx context.Context, file io.Reader) (models.DocumentMetadata, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return models.DocumentMetadata{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.DocumentMetadata{}, err
	}

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return models.DocumentMetadata{}, fmt.Errorf("%w: %v", models.ErrUnsupportedFile, err)
	}

	hash := sha256.Sum256(content)

	metadata := models.DocumentMetadata{
		FileSize: int64(len(content)),
		MimeType: "application/pdf",
		Pages:    pdfReader.NumPage(),
		Hash:     hex.EncodeToString(hash[:]),
	}

	trailer := pdfReader.Trailer()
	if trailer.IsNull() {
		return metadata, nil
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return metadata, nil
	}

	if title := info.Key("Title"); !title.IsNull() {
		metadata.Title = title.Text()
	}
	if author := info.Key("Author"); !author.IsNull() {
		metadata.Author = author.Text()
	}
	if producer := info.Key("Producer"); !producer.IsNull() {
		metadata.Producer = producer.Text()
	}

	return metadata, nil
}
