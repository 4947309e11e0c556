package artifact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"
	"github.com/gocarina/gocsv"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Writer renders batch artifacts into a content directory.
type Writer struct {
	dir    string
	logger *otelzap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewWriter creates a writer that renders into dir.
func NewWriter(dir string, logger *otelzap.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Write renders the fulfilled items for one batch and returns the
// generated filenames. If any file fails to write, every file produced
// for this batch is removed and an error returned, so no partial
// filenames are ever persisted.
func (w *Writer) Write(ctx context.Context, mode Mode, items []Item) (Files, error) {
	now := w.now()
	token := newToken(now)

	var files Files
	var err error
	switch mode {
	case ModeManifest:
		files, err = w.writeManifests(ctx, token, now, items)
	default:
		files, err = w.writeLabelDoc(token, items)
	}
	if err != nil {
		w.cleanup(files)
		return Files{}, err
	}

	w.logger.Info("Batch artifacts written",
		zap.String("mode", string(mode)),
		zap.Strings("files", files.Names()),
	)
	return files, nil
}

// Path resolves a generated filename inside the content directory. It
// rejects names that escape the directory.
func (w *Writer) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid artifact filename: %q", filename)
	}
	return filepath.Join(w.dir, filename), nil
}

// writeLabelDoc builds the label document: one page per item that
// carries image bytes, sized exactly to the image's pixel dimensions
// with the image placed at the origin. Items without image bytes add
// no page.
func (w *Writer) writeLabelDoc(token string, items []Item) (Files, error) {
	doc, err := buildLabelDoc(items)
	if err != nil {
		return Files{}, err
	}

	name := fmt.Sprintf("bulk-orders%s.pdf", token)
	path := filepath.Join(w.dir, name)
	if err := doc.OutputFileAndClose(path); err != nil {
		return Files{}, fmt.Errorf("writing label document: %w", err)
	}

	return Files{LabelDoc: name}, nil
}

// buildLabelDoc assembles the in-memory PDF. Split out so tests can
// assert page counts without touching the filesystem.
func buildLabelDoc(items []Item) (*fpdf.Fpdf, error) {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: 612, Ht: 792},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	for i, item := range items {
		if len(item.Image) == 0 {
			continue
		}

		cfg, format, err := image.DecodeConfig(bytes.NewReader(item.Image))
		if err != nil {
			return nil, fmt.Errorf("decoding label image %d: %w", i, err)
		}

		width := float64(cfg.Width)
		height := float64(cfg.Height)

		doc.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})

		imgName := fmt.Sprintf("label-%d", i)
		opts := fpdf.ImageOptions{ImageType: fpdfImageType(format)}
		doc.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(item.Image))
		doc.ImageOptions(imgName, 0, 0, width, height, false, opts, 0, "")

		if doc.Err() {
			return nil, fmt.Errorf("placing label image %d: %w", i, doc.Error())
		}
	}

	if doc.Err() {
		return nil, fmt.Errorf("building label document: %w", doc.Error())
	}
	return doc, nil
}

func fpdfImageType(format string) string {
	switch format {
	case "jpeg":
		return "JPG"
	case "gif":
		return "GIF"
	default:
		return "PNG"
	}
}

// resultRow is the result manifest schema. Courier-name carries the
// service name, matching what fulfillment partners expect to ingest.
type resultRow struct {
	OrderID        string `csv:"Order ID"`
	OrderItemID    string `csv:"Order-item-id"`
	Quantity       string `csv:"Quantity"`
	ShipDate       string `csv:"Ship-date"`
	CourierCode    string `csv:"Courier-code"`
	CourierName    string `csv:"Courier-name"`
	TrackingNumber string `csv:"Tracking-number"`
	ShipMethod     string `csv:"Ship-method"`
}

// autoConfirmRow is the auto-confirm manifest schema, a subset of the
// result schema.
type autoConfirmRow struct {
	OrderID        string `csv:"order-id"`
	TrackingNumber string `csv:"tracking-number"`
	ShipDate       string `csv:"ship-date"`
	CarrierCode    string `csv:"carrier-code"`
	ShipMethod     string `csv:"ship-method"`
}

const defaultShipMethod = "shippo"

// writeManifests renders the result and auto-confirm manifests. Both
// share the batch token; they render concurrently since neither
// depends on the other.
func (w *Writer) writeManifests(ctx context.Context, token string, now time.Time, items []Item) (Files, error) {
	shipDate := now.Format("2006-01-02")

	resultRows := make([]resultRow, len(items))
	confirmRows := make([]autoConfirmRow, len(items))
	for i, item := range items {
		method := item.ShipMethod
		if method == "" {
			method = defaultShipMethod
		}
		resultRows[i] = resultRow{
			OrderID:        item.OrderID,
			OrderItemID:    item.OrderItemID,
			Quantity:       item.Quantity,
			ShipDate:       shipDate,
			CourierCode:    item.Courier,
			CourierName:    item.ServiceName,
			TrackingNumber: item.TrackingNumber,
			ShipMethod:     method,
		}
		confirmRows[i] = autoConfirmRow{
			OrderID:        item.OrderID,
			TrackingNumber: item.TrackingNumber,
			ShipDate:       shipDate,
			CarrierCode:    item.Courier,
			ShipMethod:     method,
		}
	}

	files := Files{
		ResultManifest:      fmt.Sprintf("bulk-orders%s.csv", token),
		AutoConfirmManifest: fmt.Sprintf("auto-confirm%s.csv", token),
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeCSV(filepath.Join(w.dir, files.ResultManifest), &resultRows)
	})
	g.Go(func() error {
		return writeCSV(filepath.Join(w.dir, files.AutoConfirmManifest), &confirmRows)
	})
	if err := g.Wait(); err != nil {
		return files, err
	}

	return files, nil
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating manifest %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("writing manifest %s: %w", filepath.Base(path), err)
	}
	return nil
}

// cleanup removes whatever files a failed batch left behind.
func (w *Writer) cleanup(files Files) {
	for _, name := range files.Names() {
		path := filepath.Join(w.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("Failed to remove partial artifact",
				zap.String("file", name),
				zap.Error(err),
			)
		}
	}
}
