package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// PDFMIMEType is the only container format the splitter can render and reassemble.
const PDFMIMEType = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info, filePath)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// DetectBytes is Detect for content already in memory, e.g. an upload header.
func (d *Detector) DetectBytes(data []byte, name string) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}
	d.classify(info, name)
	return info
}

// classify determines whether the splitter can process the file
func (d *Detector) classify(info *FileTypeInfo, name string) {
	switch {
	case mimetype.EqualsAny(info.MIMEType, PDFMIMEType):
		info.Supported = true
		info.Description = "PDF document"

	// PDFs with leading junk before %PDF- are still opened by MuPDF; trust the extension
	// only when sniffing found nothing more specific.
	case info.MIMEType == "application/octet-stream" && strings.EqualFold(filepath.Ext(name), ".pdf"):
		log.Warn().Str("file", name).Msg("no PDF signature found, accepting by extension")
		info.Supported = true
		info.Description = "PDF document (by extension)"

	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Description = "Image file (convert to PDF first)"

	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}

// RequirePDF returns an error describing why filePath cannot be split, or nil.
func (d *Detector) RequirePDF(filePath string) error {
	info, err := d.Detect(filePath)
	if err != nil {
		return err
	}
	if !info.Supported {
		return fmt.Errorf("%s: %s", filepath.Base(filePath), info.Description)
	}
	return nil
}
