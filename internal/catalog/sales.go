package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evalgo.org/muxsite/internal/domain"
	"evalgo.org/muxsite/internal/storage"
)

// Sale is one recorded purchase
type Sale struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	CustomerName string    `json:"customerName"`
	Email        string    `json:"email"`
	Package      Package   `json:"package"`
	Amount       float64   `json:"amount"`
}

// SalesLedger is the append-only sales list of a scope.
type SalesLedger struct {
	store  storage.Storage
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewSalesLedger creates a ledger over a scoped storage.
func NewSalesLedger(store storage.Storage, logger logrus.FieldLogger) *SalesLedger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SalesLedger{store: store, logger: logger, now: time.Now}
}

// Add validates sale, stamps its id and date, and appends it.
func (l *SalesLedger) Add(ctx context.Context, sale Sale) (*Sale, error) {
	sale.CustomerName = strings.TrimSpace(sale.CustomerName)
	sale.Email = strings.TrimSpace(sale.Email)

	if sale.CustomerName == "" {
		return nil, domain.NewValidationError("customerName", "required", "Customer name is required.")
	}
	if sale.Email == "" {
		return nil, domain.NewValidationError("email", "required", "Email is required.")
	}
	pkg, err := ParsePackage(string(sale.Package))
	if err != nil {
		return nil, domain.NewValidationError("package", "unknown", "Package must be basic, premium or pro.")
	}
	if sale.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "not-positive", "Amount must be greater than zero.")
	}

	sale.Package = pkg
	sale.ID = uuid.New().String()
	sale.Date = l.now()

	sales, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	sales = append(sales, sale)
	if err := l.save(ctx, sales); err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"sale_id": sale.ID,
		"package": sale.Package,
		"amount":  sale.Amount,
	}).Info("Sale recorded")
	return &sale, nil
}

// List returns the sales newest first.
func (l *SalesLedger) List(ctx context.Context) ([]Sale, error) {
	sales, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Sale, len(sales))
	for i, s := range sales {
		out[len(sales)-1-i] = s
	}
	return out, nil
}

// Clear removes every sale.
func (l *SalesLedger) Clear(ctx context.Context) error {
	if err := l.store.RemoveItem(ctx, SalesKey); err != nil {
		return domain.NewOperationError("clear sales", "failed to remove sales", err)
	}
	return nil
}

// load returns the stored sales in insertion order; a malformed list reads as empty
func (l *SalesLedger) load(ctx context.Context) ([]Sale, error) {
	raw, ok, err := l.store.GetItem(ctx, SalesKey)
	if err != nil {
		return nil, domain.NewOperationError("load sales", "failed to read sales", err)
	}
	if !ok {
		return nil, nil
	}
	var sales []Sale
	if err := json.Unmarshal([]byte(raw), &sales); err != nil {
		l.logger.WithError(err).Warn("Discarding malformed sales list")
		return nil, nil
	}
	return sales, nil
}

func (l *SalesLedger) save(ctx context.Context, sales []Sale) error {
	data, err := json.Marshal(sales)
	if err != nil {
		return fmt.Errorf("failed to marshal sales: %w", err)
	}
	if err := l.store.SetItem(ctx, SalesKey, string(data)); err != nil {
		return domain.NewOperationError("save sales", "failed to write sales", err)
	}
	return nil
}
