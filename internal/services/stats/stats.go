// Package services содержит агрегацию расходов пользователя по месяцам.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/money"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/month"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// BillLister возвращает все чеки пользователя.
type BillLister interface {
	ListBills(ctx context.Context, userID int64) ([]models.Bill, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Incr атомарно увеличивает счётчик под ключом и возвращает новое значение.
	Incr(ctx context.Context, key string) (int64, error)
}

// StatsService считает суммы по месяцам и кеширует результат на ttl.
// Ключ кеша содержит версию статистики пользователя: новый чек увеличивает версию,
// поэтому результат расчёта, начатого до загрузки, уже никто не прочитает.
type StatsService struct {
	bills BillLister
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewStatsService создает новый экземпляр StatsService.
func NewStatsService(bills BillLister, cache Cache, ttl time.Duration, log *slog.Logger) *StatsService {
	return &StatsService{
		bills: bills,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// MonthlyTotals возвращает суммы по месяцам, в которых есть хотя бы один чек,
// упорядоченные по ключу YYYY-MM.
func (s *StatsService) MonthlyTotals(ctx context.Context, userID int64) ([]models.MonthlyStat, error) {
	const op = "stats.MonthlyTotals"

	key, cacheable := s.dataKey(ctx, userID)
	if cacheable {
		var cached []models.MonthlyStat
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read stats from cache", slog.String("key", key), sl.Err(err))
		}
		if found && err == nil {
			return cached, nil
		}
	}

	bills, err := s.bills.ListBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats := Totals(bills)

	if cacheable {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.log.Warn("failed to cache stats", slog.String("key", key), sl.Err(err))
		}
	}
	return stats, nil
}

// Invalidate делает закешированную статистику пользователя недостижимой.
func (s *StatsService) Invalidate(ctx context.Context, userID int64) {
	key := versionKey(userID)
	if _, err := s.cache.Incr(ctx, key); err != nil {
		s.log.Warn("failed to bump stats version", slog.String("key", key), sl.Err(err))
	}
}

// dataKey возвращает ключ текущей версии статистики. Если версию прочитать
// не удалось, кеш в этом запросе не используется.
func (s *StatsService) dataKey(ctx context.Context, userID int64) (string, bool) {
	var version int64
	if _, err := s.cache.Get(ctx, versionKey(userID), &version); err != nil {
		s.log.Warn("failed to read stats version", slog.Int64("user_id", userID), sl.Err(err))
		return "", false
	}
	return fmt.Sprintf("stats:%d:v%d", userID, version), true
}

// Totals группирует чеки по месяцу bill_date и суммирует их в целых центах.
func Totals(bills []models.Bill) []models.MonthlyStat {
	cents := make(map[string]int64)
	for _, b := range bills {
		cents[month.Key(b.BillDate)] += money.ToCents(b.Amount)
	}

	keys := make([]string, 0, len(cents))
	for k := range cents {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stats := make([]models.MonthlyStat, 0, len(keys))
	for _, k := range keys {
		stats = append(stats, models.MonthlyStat{MonthKey: k, Total: money.FromCents(cents[k])})
	}
	return stats
}

func versionKey(userID int64) string {
	return fmt.Sprintf("stats:ver:%d", userID)
}
