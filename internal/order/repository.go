package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

var (
	ErrNotRecorded     = errors.New("no order recorded for payment")
	ErrAlreadyRecorded = errors.New("order already recorded for payment")
)

// Ledger maps a captured payment to the order created for it. It is consulted
// before every submission so a retried submission cannot create a second
// order for the same payment.
type Ledger interface {
	Get(ctx context.Context, paymentID string) (*Summary, error)
	Record(ctx context.Context, summary Summary) error
}

// DB is the subset of pgxpool.Pool the ledger needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresLedger struct {
	db DB
}

func NewPostgresLedger(db DB) Ledger {
	return &postgresLedger{db: db}
}

func (r *postgresLedger) Get(ctx context.Context, paymentID string) (*Summary, error) {
	query := `
		SELECT payment_id, gateway_order_id, order_id, order_number, order_name, total_price, currency, created_at
		FROM checkout_service.order_ledger
		WHERE payment_id = $1
	`

	var summary Summary
	err := r.db.QueryRow(ctx, query, paymentID).Scan(
		&summary.PaymentID,
		&summary.GatewayOrderID,
		&summary.ID,
		&summary.Number,
		&summary.Name,
		&summary.TotalPrice,
		&summary.Currency,
		&summary.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRecorded
		}
		return nil, fmt.Errorf("repository: failed to select ledger entry for payment %s: %w", paymentID, err)
	}

	return &summary, nil
}

func (r *postgresLedger) Record(ctx context.Context, summary Summary) error {
	query := `
		INSERT INTO checkout_service.order_ledger (payment_id, gateway_order_id, order_id, order_number, order_name, total_price, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	createdAt := summary.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, query,
		summary.PaymentID,
		summary.GatewayOrderID,
		summary.ID,
		summary.Number,
		summary.Name,
		summary.TotalPrice,
		summary.Currency,
		createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Warn().Str("payment_id", summary.PaymentID).Msg("repository: ledger entry already exists")
			return ErrAlreadyRecorded
		}
		log.Error().Err(err).Str("payment_id", summary.PaymentID).Msg("repository: failed to insert ledger entry")
		return fmt.Errorf("repository: failed to insert ledger entry for payment %s: %w", summary.PaymentID, err)
	}

	return nil
}

type storeLedger struct {
	store store.Store
}

// NewStoreLedger keeps the ledger in the key/value store under
// ledger:<paymentId>.
func NewStoreLedger(st store.Store) Ledger {
	return &storeLedger{store: st}
}

func ledgerKey(paymentID string) string {
	return store.Key("ledger", paymentID)
}

func (l *storeLedger) Get(ctx context.Context, paymentID string) (*Summary, error) {
	var summary Summary
	if err := store.GetJSON(ctx, l.store, ledgerKey(paymentID), &summary); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotRecorded
		}
		return nil, fmt.Errorf("repository: failed to read ledger entry: %w", err)
	}
	return &summary, nil
}

func (l *storeLedger) Record(ctx context.Context, summary Summary) error {
	_, err := l.store.Get(ctx, ledgerKey(summary.PaymentID))
	if err == nil {
		return ErrAlreadyRecorded
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("repository: failed to read ledger entry: %w", err)
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	return store.SetJSON(ctx, l.store, ledgerKey(summary.PaymentID), summary)
}
