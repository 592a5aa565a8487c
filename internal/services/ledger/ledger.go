// Package services содержит бизнес-логику журнала чеков: приём, хранение изображений и выборки.
package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	// Регистрация декодеров форматов, принимаемых при загрузке.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/money"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/month"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// BillRepository определяет методы для работы с чеками в хранилище.
type BillRepository interface {
	// InsertBill сохраняет чек и возвращает его ID.
	InsertBill(ctx context.Context, bill models.Bill) (int64, error)
	// ListBillsBetween возвращает чеки с bill_date в [from, to) по возрастанию даты и времени.
	ListBillsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Bill, error)
	// ListBills возвращает все чеки пользователя.
	ListBills(ctx context.Context, userID int64) ([]models.Bill, error)
}

// BlobStore хранит изображения чеков.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Delete(ctx context.Context, handle string) error
}

// Publisher отправляет события о новых чеках.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// StatsInvalidator сбрасывает кеш статистики пользователя.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// ImageLimits ограничивает принимаемые изображения. Нулевое поле снимает ограничение.
type ImageLimits struct {
	MaxBytes  int
	MaxPixels int
}

// LedgerService реализует добавление и выборку чеков.
type LedgerService struct {
	repo      BillRepository
	blobs     BlobStore
	publisher Publisher
	stats     StatsInvalidator
	log       *slog.Logger
	limits    ImageLimits
	now       func() time.Time
	newID     func() string
}

// NewLedgerService создает новый экземпляр LedgerService.
func NewLedgerService(repo BillRepository, blobs BlobStore, publisher Publisher, stats StatsInvalidator,
	limits ImageLimits, log *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:      repo,
		blobs:     blobs,
		publisher: publisher,
		stats:     stats,
		log:       log,
		limits:    limits,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Add проверяет данные чека, сохраняет изображение и запись о чеке.
// Если запись не сохранилась, изображение удаляется: чек либо записан целиком, либо не записан.
func (s *LedgerService) Add(ctx context.Context, userID int64, req models.NewBill) (*models.Bill, error) {
	const op = "ledger.Add"

	bill, format, err := s.validate(userID, req)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now().UTC()
	name := blobName(uploadedAt, s.newID(), req.Filename, format)
	handle, err := s.blobs.Put(ctx, name, req.Image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bill.ImageRef = handle
	bill.UploadedAt = uploadedAt

	id, err := s.repo.InsertBill(ctx, *bill)
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), handle); delErr != nil {
			s.log.Warn("failed to remove orphaned image", slog.String("handle", handle), sl.Err(delErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bill.ID = id

	s.log.Info("bill stored", slog.Int64("id", id), sl.UserID(userID))
	s.stats.Invalidate(ctx, userID)

	event := models.BillUploadedEvent{
		BillID: id,
		UserID: userID,
		Month:  bill.MonthKey(),
		Amount: bill.Amount,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish bill event", slog.Int64("id", id), sl.Err(err))
	}
	return bill, nil
}

// ListForMonth возвращает чеки пользователя за месяц по возрастанию даты и времени.
// Пустой месяц ошибкой не считается.
func (s *LedgerService) ListForMonth(ctx context.Context, userID int64, year int, m time.Month) ([]models.Bill, error) {
	const op = "ledger.ListForMonth"
	if err := month.Validate(year, m); err != nil {
		return nil, apperr.Validation("month", err.Error())
	}

	from, to := month.Bounds(year, m)
	bills, err := s.repo.ListBillsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if bills == nil {
		bills = []models.Bill{}
	}
	return bills, nil
}

// ListAll возвращает все чеки пользователя.
func (s *LedgerService) ListAll(ctx context.Context, userID int64) ([]models.Bill, error) {
	const op = "ledger.ListAll"
	bills, err := s.repo.ListBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if bills == nil {
		bills = []models.Bill{}
	}
	return bills, nil
}

func (s *LedgerService) validate(userID int64, req models.NewBill) (*models.Bill, string, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return nil, "", apperr.Validation("amount", err.Error())
	}
	billDate, err := time.Parse(models.DateLayout, strings.TrimSpace(req.BillDate))
	if err != nil {
		return nil, "", apperr.Validation("bill_date", "must be in format YYYY-MM-DD")
	}
	if err := month.Validate(billDate.Year(), billDate.Month()); err != nil {
		return nil, "", apperr.Validation("bill_date", "year must be between 0001 and 9999")
	}
	billTime, err := parseClock(req.BillTime)
	if err != nil {
		return nil, "", apperr.Validation("bill_time", "must be in format HH:MM or HH:MM:SS")
	}
	shop := strings.TrimSpace(req.Shop)
	if shop == "" {
		return nil, "", apperr.Validation("shop", "must not be empty")
	}

	format, err := s.checkImage(req.Image)
	if err != nil {
		return nil, "", err
	}

	return &models.Bill{
		UserID:   userID,
		Amount:   amount,
		BillDate: billDate,
		BillTime: billTime,
		Shop:     shop,
	}, format, nil
}

// checkImage проверяет размер и формат изображения и декодирует его целиком,
// чтобы отчёт не споткнулся о файл с корректным заголовком и битыми данными.
func (s *LedgerService) checkImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Validation("image", "must not be empty")
	}
	if s.limits.MaxBytes > 0 && len(data) > s.limits.MaxBytes {
		return "", apperr.Validation("image", fmt.Sprintf("must be at most %d bytes", s.limits.MaxBytes))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return "", apperr.Validation("image", "must be a JPEG, PNG or GIF image")
	}
	if s.limits.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(s.limits.MaxPixels) {
		return "", apperr.Validation("image", fmt.Sprintf("must be at most %d pixels", s.limits.MaxPixels))
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", apperr.Validation("image", "image data is corrupted")
	}
	return format, nil
}

// parseClock принимает HH:MM и HH:MM:SS и возвращает время в формате HH:MM:SS.
func parseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{models.TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.TimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", s)
}

// blobName строит имя файла вида <unix-seconds>_<uuid>_<имя>.
// Из исходного имени остаются только безопасные символы.
func blobName(at time.Time, id, filename, format string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "._")
	if len(name) > 64 {
		name = name[len(name)-64:]
	}
	if name == "" {
		name = "receipt." + extension(format)
	}
	return fmt.Sprintf("%d_%s_%s", at.Unix(), id, name)
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
