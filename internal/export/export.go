// Package export writes the canvas out for the download command.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// File writes each download into Dir as whiteboard-<timestamp>.<format>.
type File struct {
	Dir    string
	Format Format

	now func() time.Time
}

func NewFile(dir string, format Format) (*File, error) {
	switch format {
	case FormatPNG, FormatPDF:
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}

	return &File{Dir: dir, Format: format, now: time.Now}, nil
}

// Export writes snapshot, a PNG, and returns the path it was written to.
func (f *File) Export(ctx context.Context, snapshot []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("whiteboard-%v.%v", f.now().UTC().Format("20060102-150405.000"), f.Format)
	path := filepath.Join(f.Dir, name)

	switch f.Format {
	case FormatPDF:
		if err := writePDF(path, snapshot); err != nil {
			return "", fmt.Errorf("export pdf: %w", err)
		}
	default:
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return "", fmt.Errorf("export png: %w", err)
		}
	}

	return path, nil
}

// writePDF places the snapshot on a single page of exactly its size, one
// point per pixel.
func writePDF(path string, snapshot []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(snapshot))
	if err != nil {
		return err
	}

	w, h := float64(cfg.Width), float64(cfg.Height)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", opts, bytes.NewReader(snapshot))
	pdf.ImageOptions("canvas", 0, 0, w, h, false, opts, 0, "")

	return pdf.OutputFileAndClose(path)
}
