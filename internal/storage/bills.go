package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

const billColumns = `id, user_id, amount, bill_date, to_char(bill_time, 'HH24:MI:SS'), shop, image_ref, uploaded_at`

// InsertBill сохраняет чек одной командой INSERT и возвращает его ID.
func (s *Storage) InsertBill(ctx context.Context, bill models.Bill) (int64, error) {
	const op = "storage.InsertBill"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO bills (user_id, amount, bill_date, bill_time, shop, image_ref, uploaded_at)
			  VALUES ($1, $2, $3, $4::text::time, $5, $6, $7)
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		bill.UserID, bill.Amount, bill.BillDate, bill.BillTime, bill.Shop, bill.ImageRef, bill.UploadedAt).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListBillsBetween возвращает чеки пользователя с bill_date в полуинтервале [from, to),
// упорядоченные по дате, времени и id.
func (s *Storage) ListBillsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Bill, error) {
	const op = "storage.ListBillsBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + billColumns + `
			  FROM bills
			  WHERE user_id = $1 AND bill_date >= $2 AND bill_date < $3
			  ORDER BY bill_date, bill_time, id`
	rows, err := s.DB.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bills, err := scanBills(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bills, nil
}

// ListBills возвращает все чеки пользователя в том же порядке.
func (s *Storage) ListBills(ctx context.Context, userID int64) ([]models.Bill, error) {
	const op = "storage.ListBills"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + billColumns + `
			  FROM bills
			  WHERE user_id = $1
			  ORDER BY bill_date, bill_time, id`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bills, err := scanBills(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bills, nil
}

func scanBills(rows *sql.Rows) ([]models.Bill, error) {
	defer func() { _ = rows.Close() }()

	var bills []models.Bill
	for rows.Next() {
		var b models.Bill
		if err := rows.Scan(&b.ID, &b.UserID, &b.Amount, &b.BillDate, &b.BillTime,
			&b.Shop, &b.ImageRef, &b.UploadedAt); err != nil {
			return nil, err
		}
		b.BillDate = b.BillDate.UTC()
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bills, nil
}
