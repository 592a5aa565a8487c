// Package services собирает PDF-отчёт по чекам пользователя за месяц.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	// Регистрация декодеров форматов, которые может содержать хранилище.
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/money"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/month"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// BillSource возвращает чеки месяца в порядке журнала.
type BillSource interface {
	ListForMonth(ctx context.Context, userID int64, year int, m time.Month) ([]models.Bill, error)
}

// BlobReader читает изображения чеков.
type BlobReader interface {
	Get(ctx context.Context, handle string) ([]byte, error)
}

// ErrTooManyPixels — изображение больше допустимого числа пикселей.
var ErrTooManyPixels = errors.New("image has too many pixels")

// fontFamily — встроенный TrueType-шрифт с кириллицей.
const fontFamily = "goregular"

// Options — параметры отчёта. MaxImagePixels = 0 снимает ограничение.
type Options struct {
	Geometry       PageGeometry
	FontSize       float64
	FetchWorkers   int
	MaxImagePixels int
}

// ReportService строит PDF-отчёты. Отчёт не сохраняется и строится заново на каждый запрос.
type ReportService struct {
	bills BillSource
	blobs BlobReader
	opts  Options
	log   *slog.Logger
	now   func() time.Time
}

// NewReportService проверяет геометрию страницы и создаёт сервис.
func NewReportService(bills BillSource, blobs BlobReader, opts Options, log *slog.Logger) (*ReportService, error) {
	const op = "report.NewReportService"
	if _, err := opts.Geometry.Place(1, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if opts.FontSize <= 0 {
		return nil, fmt.Errorf("%s: font size must be positive", op)
	}
	if opts.FetchWorkers < 1 {
		opts.FetchWorkers = 1
	}
	return &ReportService{
		bills: bills,
		blobs: blobs,
		opts:  opts,
		log:   log,
		now:   time.Now,
	}, nil
}

// Page — одна страница отчёта: строки метаданных и положение изображения.
type Page struct {
	Bill      models.Bill
	Meta      []string
	Placement Placement
	image     preparedImage
}

type preparedImage struct {
	data   []byte
	kind   string
	width  int
	height int
}

// BuildMonthlyReport возвращает PDF со всеми чеками пользователя за месяц, по одному на страницу.
// Если чеков нет, возвращает ошибку вида NotFound.
func (s *ReportService) BuildMonthlyReport(ctx context.Context, userID int64, year int, m time.Month) ([]byte, error) {
	const op = "report.BuildMonthlyReport"

	pages, err := s.Plan(ctx, userID, year, m)
	if err != nil {
		return nil, err
	}

	pdf, err := s.render(month.KeyOf(year, m), pages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("report built",
		sl.UserID(userID),
		slog.String("month", month.KeyOf(year, m)),
		slog.Int("pages", len(pages)),
		slog.Int("bytes", len(pdf)),
	)
	return pdf, nil
}

// Plan выбирает чеки месяца, загружает изображения и раскладывает их по страницам.
func (s *ReportService) Plan(ctx context.Context, userID int64, year int, m time.Month) ([]Page, error) {
	const op = "report.Plan"

	bills, err := s.bills.ListForMonth(ctx, userID, year, m)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(bills) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("no bills for %s", month.KeyOf(year, m)))
	}

	images, err := s.fetchImages(ctx, bills)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pages := make([]Page, len(bills))
	for i, b := range bills {
		p, err := s.opts.Geometry.Place(images[i].width, images[i].height)
		if err != nil {
			return nil, fmt.Errorf("%s: bill %d: %w", op, b.ID, err)
		}
		pages[i] = Page{
			Bill:      b,
			Meta:      metaLines(b),
			Placement: p,
			image:     images[i],
		}
	}
	return pages, nil
}

// fetchImages загружает изображения параллельно, сохраняя порядок чеков.
func (s *ReportService) fetchImages(ctx context.Context, bills []models.Bill) ([]preparedImage, error) {
	images := make([]preparedImage, len(bills))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchWorkers)
	for i, b := range bills {
		g.Go(func() error {
			data, err := s.blobs.Get(gctx, b.ImageRef)
			if err != nil {
				return fmt.Errorf("bill %d: %w", b.ID, err)
			}
			img, err := prepareImage(data, s.opts.MaxImagePixels)
			if err != nil {
				return fmt.Errorf("bill %d: %w", b.ID, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// prepareImage приводит изображение к виду, который умеет встраивать PDF-writer:
// JPEG передаётся как есть, остальное перекодируется в 8-битный неинтерлейсный PNG.
// Размер проверяется по заголовку, до выделения памяти под пиксели.
func prepareImage(data []byte, maxPixels int) (preparedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return preparedImage{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return preparedImage{}, ErrBadImageSize
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return preparedImage{}, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}
	if format == "jpeg" {
		return preparedImage{data: data, kind: "JPG", width: cfg.Width, height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return preparedImage{}, fmt.Errorf("decode image: %w", err)
	}
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return preparedImage{}, fmt.Errorf("encode png: %w", err)
	}
	return preparedImage{data: buf.Bytes(), kind: "PNG", width: cfg.Width, height: cfg.Height}, nil
}

func metaLines(b models.Bill) []string {
	return []string{
		"Amount: " + money.Format(b.Amount),
		"Date: " + b.BillDate.Format(models.DateLayout),
		"Time: " + b.BillTime,
		"Shop: " + b.Shop,
	}
}

func (s *ReportService) render(monthKey string, pages []Page) ([]byte, error) {
	g := s.opts.Geometry
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: g.Width, Ht: g.Height},
	})
	pdf.SetMargins(g.Margin, g.Margin, g.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(s.now().UTC())
	pdf.SetTitle("Receipts "+monthKey, true)
	pdf.SetCreator("receipt-ledger", true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", goregular.TTF)
	if pdf.Err() {
		return nil, pdf.Error()
	}

	lineHeight := s.opts.FontSize * 1.5
	if n := float64(len(metaLines(models.Bill{}))); lineHeight*n > g.MetaHeight {
		lineHeight = g.MetaHeight / n
	}

	for i, p := range pages {
		pdf.AddPage()
		pdf.SetFont(fontFamily, "", s.opts.FontSize)
		pdf.SetXY(g.Margin, g.Margin)
		for _, line := range p.Meta {
			pdf.CellFormat(g.UsableWidth(), lineHeight, line, "", 1, "L", false, 0, "")
		}

		name := fmt.Sprintf("bill-%d-%d", i, p.Bill.ID)
		opts := fpdf.ImageOptions{ImageType: p.image.kind}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(p.image.data))
		pdf.ImageOptions(name, p.Placement.X, p.Placement.Y, p.Placement.W, p.Placement.H, false, opts, 0, "")
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, errors.New("empty pdf output")
	}
	return buf.Bytes(), nil
}
