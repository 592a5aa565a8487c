package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

// pngHeader возвращает PNG из одной сигнатуры и чанка IHDR: размеры есть, пикселей нет.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 0, 17)
	ihdr = append(ihdr, "IHDR"...)
	ihdr = binary.BigEndian.AppendUint32(ihdr, w)
	ihdr = binary.BigEndian.AppendUint32(ihdr, h)
	ihdr = append(ihdr, 8, 6, 0, 0, 0)

	out := []byte("\x89PNG\r\n\x1a\n")
	out = binary.BigEndian.AppendUint32(out, uint32(len(ihdr)-4))
	out = append(out, ihdr...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(ihdr))
}

// Мок для BillRepository
type BillRepoMock struct {
	mock.Mock
}

func (m *BillRepoMock) InsertBill(ctx context.Context, bill models.Bill) (int64, error) {
	args := m.Called(ctx, bill)
	return args.Get(0).(int64), args.Error(1)
}

func (m *BillRepoMock) ListBillsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Bill, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bill), args.Error(1)
}

func (m *BillRepoMock) ListBills(ctx context.Context, userID int64) ([]models.Bill, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bill), args.Error(1)
}

// Мок для BlobStore
type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Put(ctx context.Context, name string, data []byte) (string, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Error(1)
}

func (m *BlobStoreMock) Delete(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

// Мок для Publisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, message any) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// Мок для StatsInvalidator
type StatsMock struct {
	mock.Mock
}

func (m *StatsMock) Invalidate(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

type ledgerMocks struct {
	repo  *BillRepoMock
	blobs *BlobStoreMock
	pub   *PublisherMock
	stats *StatsMock
}

func newTestLedger(maxImageBytes int) (*LedgerService, ledgerMocks) {
	m := ledgerMocks{
		repo:  new(BillRepoMock),
		blobs: new(BlobStoreMock),
		pub:   new(PublisherMock),
		stats: new(StatsMock),
	}
	svc := NewLedgerService(m.repo, m.blobs, m.pub, m.stats,
		ImageLimits{MaxBytes: maxImageBytes, MaxPixels: 1_000_000}, newNoopLogger())
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	svc.newID = func() string { return "00000000-0000-0000-0000-000000000001" }
	return svc, m
}

func TestLedgerService_Add(t *testing.T) {
	pngBytes := testImage(t, "png", 4, 3)
	const wantName = "1700000000_00000000-0000-0000-0000-000000000001_receipt.png"

	svc, m := newTestLedger(1 << 20)
	m.blobs.On("Put", mock.Anything, wantName, pngBytes).Return(wantName, nil).Once()
	m.repo.On("InsertBill", mock.Anything, mock.MatchedBy(func(b models.Bill) bool {
		return b.UserID == 7 &&
			b.Amount.Equal(decimal.RequireFromString("12.50")) &&
			b.BillDate.Format(models.DateLayout) == "2025-01-15" &&
			b.BillTime == "09:30:00" &&
			b.Shop == "Corner Shop" &&
			b.ImageRef == wantName &&
			b.UploadedAt.Equal(time.Unix(1700000000, 0))
	})).Return(int64(99), nil).Once()
	m.stats.On("Invalidate", mock.Anything, int64(7)).Once()
	m.pub.On("Publish", mock.Anything, models.BillUploadedEvent{
		BillID: 99, UserID: 7, Month: "2025-01", Amount: decimal.RequireFromString("12.50"),
	}).Return(nil).Once()

	bill, err := svc.Add(context.Background(), 7, models.NewBill{
		Amount:   "12,50",
		BillDate: "2025-01-15",
		BillTime: "09:30",
		Shop:     "  Corner Shop ",
		Filename: "receipt.png",
		Image:    pngBytes,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), bill.ID)
	assert.Equal(t, wantName, bill.ImageRef)

	m.repo.AssertExpectations(t)
	m.blobs.AssertExpectations(t)
	m.stats.AssertExpectations(t)
	m.pub.AssertExpectations(t)
}

func TestLedgerService_AddAcceptsFormats(t *testing.T) {
	for _, format := range []string{"png", "jpeg", "gif"} {
		t.Run(format, func(t *testing.T) {
			svc, m := newTestLedger(1 << 20)
			m.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("h", nil)
			m.repo.On("InsertBill", mock.Anything, mock.Anything).Return(int64(1), nil)
			m.stats.On("Invalidate", mock.Anything, mock.Anything)
			m.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

			_, err := svc.Add(context.Background(), 1, models.NewBill{
				Amount: "1.00", BillDate: "2025-01-01", BillTime: "10:00:00", Shop: "S",
				Filename: "x", Image: testImage(t, format, 2, 2),
			})
			assert.NoError(t, err)
		})
	}
}

func TestLedgerService_AddValidation(t *testing.T) {
	png := testImage(t, "png", 2, 2)
	valid := func() models.NewBill {
		return models.NewBill{
			Amount: "5.00", BillDate: "2025-01-01", BillTime: "10:00:00", Shop: "Shop",
			Filename: "r.png", Image: png,
		}
	}

	tests := []struct {
		name      string
		mutate    func(b *models.NewBill)
		wantField string
	}{
		{name: "zero amount", mutate: func(b *models.NewBill) { b.Amount = "0" }, wantField: "amount"},
		{name: "negative amount", mutate: func(b *models.NewBill) { b.Amount = "-3.00" }, wantField: "amount"},
		{name: "non numeric amount", mutate: func(b *models.NewBill) { b.Amount = "abc" }, wantField: "amount"},
		{name: "three decimals", mutate: func(b *models.NewBill) { b.Amount = "1.005" }, wantField: "amount"},
		{name: "bad date", mutate: func(b *models.NewBill) { b.BillDate = "15.01.2025" }, wantField: "bill_date"},
		{name: "impossible date", mutate: func(b *models.NewBill) { b.BillDate = "2025-02-30" }, wantField: "bill_date"},
		{name: "year zero", mutate: func(b *models.NewBill) { b.BillDate = "0000-01-01" }, wantField: "bill_date"},
		{name: "bad time", mutate: func(b *models.NewBill) { b.BillTime = "25:00" }, wantField: "bill_time"},
		{name: "empty time", mutate: func(b *models.NewBill) { b.BillTime = "" }, wantField: "bill_time"},
		{name: "empty shop", mutate: func(b *models.NewBill) { b.Shop = "" }, wantField: "shop"},
		{name: "blank shop", mutate: func(b *models.NewBill) { b.Shop = "  " }, wantField: "shop"},
		{name: "empty image", mutate: func(b *models.NewBill) { b.Image = nil }, wantField: "image"},
		{name: "not an image", mutate: func(b *models.NewBill) { b.Image = []byte("hello") }, wantField: "image"},
		{name: "image too large", mutate: func(b *models.NewBill) { b.Image = append(append([]byte{}, png...), make([]byte, 4096)...) }, wantField: "image"},
		{name: "too many pixels", mutate: func(b *models.NewBill) { b.Image = pngHeader(60000, 60000) }, wantField: "image"},
		{name: "header without pixel data", mutate: func(b *models.NewBill) { b.Image = pngHeader(10, 10) }, wantField: "image"},
		{name: "truncated png", mutate: func(b *models.NewBill) { b.Image = png[:len(png)-20] }, wantField: "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestLedger(len(png) + 100)
			req := valid()
			tt.mutate(&req)

			_, err := svc.Add(context.Background(), 1, req)
			require.Error(t, err)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Equal(t, tt.wantField, e.Field)

			m.blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
			m.repo.AssertNotCalled(t, "InsertBill", mock.Anything, mock.Anything)
		})
	}
}

func TestLedgerService_AddIsAtomic(t *testing.T) {
	req := models.NewBill{
		Amount: "5.00", BillDate: "2025-01-01", BillTime: "10:00:00", Shop: "Shop",
		Filename: "r.png", Image: testImage(t, "png", 2, 2),
	}
	dbErr := errors.New("insert failed")

	t.Run("blob failure stores nothing", func(t *testing.T) {
		svc, m := newTestLedger(1 << 20)
		m.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full"))

		_, err := svc.Add(context.Background(), 1, req)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
		m.repo.AssertNotCalled(t, "InsertBill", mock.Anything, mock.Anything)
	})

	t.Run("insert failure removes blob", func(t *testing.T) {
		svc, m := newTestLedger(1 << 20)
		m.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("handle", nil)
		m.repo.On("InsertBill", mock.Anything, mock.Anything).Return(int64(0), dbErr)
		m.blobs.On("Delete", mock.Anything, "handle").Return(nil).Once()

		_, err := svc.Add(context.Background(), 1, req)
		require.ErrorIs(t, err, dbErr)
		m.blobs.AssertExpectations(t)
		m.stats.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
		m.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("cleanup failure is not fatal", func(t *testing.T) {
		svc, m := newTestLedger(1 << 20)
		m.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("handle", nil)
		m.repo.On("InsertBill", mock.Anything, mock.Anything).Return(int64(0), dbErr)
		m.blobs.On("Delete", mock.Anything, "handle").Return(errors.New("permission denied"))

		_, err := svc.Add(context.Background(), 1, req)
		require.ErrorIs(t, err, dbErr)
	})

	t.Run("publish failure keeps bill", func(t *testing.T) {
		svc, m := newTestLedger(1 << 20)
		m.blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("handle", nil)
		m.repo.On("InsertBill", mock.Anything, mock.Anything).Return(int64(5), nil)
		m.stats.On("Invalidate", mock.Anything, int64(1))
		m.pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		bill, err := svc.Add(context.Background(), 1, req)
		require.NoError(t, err)
		assert.Equal(t, int64(5), bill.ID)
		m.blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestLedgerService_ListForMonth(t *testing.T) {
	t.Run("uses month bounds", func(t *testing.T) {
		svc, m := newTestLedger(0)
		from := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
		want := []models.Bill{{ID: 1}, {ID: 2}}
		m.repo.On("ListBillsBetween", mock.Anything, int64(3), from, to).Return(want, nil).Once()

		got, err := svc.ListForMonth(context.Background(), 3, 2025, time.February)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		m.repo.AssertExpectations(t)
	})

	t.Run("empty month is not an error", func(t *testing.T) {
		svc, m := newTestLedger(0)
		m.repo.On("ListBillsBetween", mock.Anything, int64(3), mock.Anything, mock.Anything).Return(nil, nil)

		got, err := svc.ListForMonth(context.Background(), 3, 2025, time.July)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("invalid month", func(t *testing.T) {
		svc, _ := newTestLedger(0)
		_, err := svc.ListForMonth(context.Background(), 3, 2025, time.Month(13))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("storage failure", func(t *testing.T) {
		svc, m := newTestLedger(0)
		m.repo.On("ListBillsBetween", mock.Anything, int64(3), mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
		_, err := svc.ListForMonth(context.Background(), 3, 2025, time.July)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	})
}

// memRepo хранит чеки в памяти и упорядочивает выборки так же, как PostgreSQL-хранилище.
type memRepo struct {
	bills []models.Bill
}

func (r *memRepo) InsertBill(_ context.Context, b models.Bill) (int64, error) {
	b.ID = int64(len(r.bills) + 1)
	r.bills = append(r.bills, b)
	return b.ID, nil
}

func (r *memRepo) ListBillsBetween(_ context.Context, userID int64, from, to time.Time) ([]models.Bill, error) {
	var out []models.Bill
	for _, b := range r.bills {
		if b.UserID == userID && !b.BillDate.Before(from) && b.BillDate.Before(to) {
			out = append(out, b)
		}
	}
	sortBills(out)
	return out, nil
}

func (r *memRepo) ListBills(_ context.Context, userID int64) ([]models.Bill, error) {
	var out []models.Bill
	for _, b := range r.bills {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortBills(out)
	return out, nil
}

func sortBills(bills []models.Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].BillDate.Equal(bills[j].BillDate) {
			return bills[i].BillDate.Before(bills[j].BillDate)
		}
		if bills[i].BillTime != bills[j].BillTime {
			return bills[i].BillTime < bills[j].BillTime
		}
		return bills[i].ID < bills[j].ID
	})
}

func TestLedgerService_ListForMonthReturnsExactSubset(t *testing.T) {
	repo := &memRepo{}
	blobs := new(BlobStoreMock)
	blobs.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("h", nil)
	stats := new(StatsMock)
	stats.On("Invalidate", mock.Anything, mock.Anything)
	pub := new(PublisherMock)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	svc := NewLedgerService(repo, blobs, pub, stats, ImageLimits{}, newNoopLogger())
	img := testImage(t, "png", 1, 1)

	inputs := []struct {
		user int64
		date string
		at   string
	}{
		{1, "2025-03-10", "10:00"}, {1, "2025-02-28", "23:59:59"}, {1, "2025-03-01", "00:00"},
		{2, "2025-03-05", "12:00"}, {1, "2025-03-10", "08:00"}, {1, "2025-03-31", "23:59:59"},
		{1, "2025-04-01", "00:00"}, {1, "2024-03-15", "12:00"},
	}
	for _, in := range inputs {
		_, err := svc.Add(context.Background(), in.user, models.NewBill{
			Amount: "1.00", BillDate: in.date, BillTime: in.at, Shop: "S", Filename: "f.png", Image: img,
		})
		require.NoError(t, err)
	}

	got, err := svc.ListForMonth(context.Background(), 1, 2025, time.March)
	require.NoError(t, err)

	var keys []string
	for _, b := range got {
		assert.Equal(t, int64(1), b.UserID)
		keys = append(keys, b.BillDate.Format(models.DateLayout)+" "+b.BillTime)
	}
	assert.Equal(t, []string{
		"2025-03-01 00:00:00",
		"2025-03-10 08:00:00",
		"2025-03-10 10:00:00",
		"2025-03-31 23:59:59",
	}, keys)

	all, err := svc.ListAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBlobName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	tests := []struct {
		name     string
		filename string
		format   string
		want     string
	}{
		{name: "plain", filename: "check.jpg", format: "jpeg", want: "1700000000_id_check.jpg"},
		{name: "path stripped", filename: "../../etc/passwd", format: "png", want: "1700000000_id_passwd"},
		{name: "windows path", filename: `C:\Users\me\scan.png`, format: "png", want: "1700000000_id_scan.png"},
		{name: "unsafe chars", filename: "my receipt (1).png", format: "png", want: "1700000000_id_my_receipt__1_.png"},
		{name: "empty falls back to format", filename: "", format: "jpeg", want: "1700000000_id_receipt.jpg"},
		{name: "dotfile", filename: ".hidden", format: "gif", want: "1700000000_id_hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, blobName(at, "id", tt.filename, tt.format))
		})
	}

	long := blobName(at, "id", strings.Repeat("a", 100)+".png", "png")
	assert.LessOrEqual(t, len(long), len("1700000000_id_")+64)
	assert.True(t, strings.HasSuffix(long, ".png"))
}
