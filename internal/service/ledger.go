package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/pagination"
)

// Ledger posting outcomes, used as metric labels.
const (
	outcomeInserted  = "inserted"
	outcomeUpdated   = "updated"
	outcomeDuplicate = "duplicate"
)

// LedgerService keeps the vendor ledger and the cached vendor balance in step with
// approved transactions. Postings run inside the workflow's unit of work with the
// vendor row locked, so two postings for one vendor never read the same last balance.
type LedgerService struct {
	store  repository.Store
	events EventPublisher
	cache  ReadCache
	logger *slog.Logger
}

// NewLedgerService creates a new ledger service. events and cache may be nil.
func NewLedgerService(store repository.Store, events EventPublisher, cache ReadCache, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		events: publisherOrNoop(events),
		cache:  cacheOrNoop(cache),
		logger: loggerOrDefault(logger),
	}
}

// ledgerPost is the outcome of one posting.
type ledgerPost struct {
	entry   domain.VendorLedgerEntry
	balance decimal.Decimal
	outcome string
}

// CreateVendor registers a vendor with a zero balance.
func (s *LedgerService) CreateVendor(ctx context.Context, name string) (*domain.Vendor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	ts := now()
	v := &domain.Vendor{
		ID:        uuid.New().String(),
		Name:      name,
		Balance:   decimal.Zero,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	err := s.store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Vendors.Create(ctx, v)
	})
	if err != nil {
		return nil, fmt.Errorf("create vendor: %w", err)
	}

	s.logger.InfoContext(ctx, "vendor created",
		slog.String("vendor_id", v.ID),
		slog.String("name", v.Name),
	)
	return v, nil
}

// SyncTransaction posts the ledger effect of approving (or voiding) tx inside the
// caller's unit of work. It returns nil, nil when tx does not touch the ledger.
// Re-posting the same transaction never adds a second entry.
func (s *LedgerService) SyncTransaction(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, void bool) (*domain.VendorLedgerEntry, error) {
	post, err := s.syncTransaction(ctx, repos, tx, void)
	if err != nil || post == nil {
		return nil, err
	}
	return &post.entry, nil
}

func (s *LedgerService) syncTransaction(ctx context.Context, repos repository.Repositories, tx *domain.InventoryTransaction, void bool) (*ledgerPost, error) {
	if !tx.HasVendor() || !tx.Type.AffectsVendorLedger() {
		return nil, nil
	}

	var (
		posting domain.LedgerPosting
		ok      bool
		desc    string
	)
	if void {
		posting, ok = domain.VoidPosting(tx.Type, tx.TotalCost)
		desc = "void of " + tx.InvoiceNo
	} else {
		posting, ok = domain.ApprovalPosting(tx.Type, tx.TotalCost)
		desc = string(tx.Type) + " " + tx.InvoiceNo
	}
	if !ok {
		return nil, nil
	}
	return s.post(ctx, repos, *tx.VendorID, tx.ID, posting, desc)
}

// post writes one entry keyed by (referenceID, posting.EntryType). An existing entry
// with the same amounts is left alone; one with different amounts is corrected in
// place and every later running balance moves by the difference.
func (s *LedgerService) post(ctx context.Context, repos repository.Repositories, vendorID, referenceID string, p domain.LedgerPosting, desc string) (*ledgerPost, error) {
	vendor, err := repos.Vendors.GetForUpdate(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	existing, err := repos.Ledger.GetByReference(ctx, referenceID, p.EntryType)
	switch {
	case err == nil:
		return s.correct(ctx, repos, vendor, existing, p, desc)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("look up ledger entry: %w", err)
	}

	previous := decimal.Zero
	last, err := repos.Ledger.Last(ctx, vendorID)
	switch {
	case err == nil:
		previous = last.RunningBalance
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("read last ledger entry: %w", err)
	}

	ts := now()
	entry := domain.VendorLedgerEntry{
		ID:              uuid.New().String(),
		VendorID:        vendorID,
		EntryType:       p.EntryType,
		ReferenceID:     referenceID,
		Debit:           p.Debit,
		Credit:          p.Credit,
		RunningBalance:  previous.Add(p.Debit).Sub(p.Credit),
		TransactionDate: ts,
		Description:     desc,
		CreatedAt:       ts,
	}
	if err := repos.Ledger.Create(ctx, &entry); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateLedgerEntry) {
			vendorLedgerEntriesTotal.WithLabelValues(string(p.EntryType), outcomeDuplicate).Inc()
			return &ledgerPost{entry: entry, balance: vendor.Balance, outcome: outcomeDuplicate}, nil
		}
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	if err := repos.Vendors.UpdateBalance(ctx, vendorID, entry.RunningBalance); err != nil {
		return nil, fmt.Errorf("update vendor balance: %w", err)
	}

	vendorLedgerEntriesTotal.WithLabelValues(string(p.EntryType), outcomeInserted).Inc()
	return &ledgerPost{entry: entry, balance: entry.RunningBalance, outcome: outcomeInserted}, nil
}

func (s *LedgerService) correct(ctx context.Context, repos repository.Repositories, vendor *domain.Vendor, existing *domain.VendorLedgerEntry, p domain.LedgerPosting, desc string) (*ledgerPost, error) {
	if existing.SameAmounts(p.Debit, p.Credit) {
		vendorLedgerEntriesTotal.WithLabelValues(string(p.EntryType), outcomeDuplicate).Inc()
		return &ledgerPost{entry: *existing, balance: vendor.Balance, outcome: outcomeDuplicate}, nil
	}

	diff := p.Debit.Sub(p.Credit).Sub(existing.Net())
	existing.Debit = p.Debit
	existing.Credit = p.Credit
	existing.RunningBalance = existing.RunningBalance.Add(diff)
	existing.Description = desc
	if err := repos.Ledger.UpdateAmounts(ctx, existing); err != nil {
		return nil, fmt.Errorf("update ledger entry: %w", err)
	}

	entries, err := repos.Ledger.ListChronological(ctx, vendor.ID)
	if err != nil {
		return nil, err
	}
	balance := existing.RunningBalance
	seen := false
	for i := range entries {
		if entries[i].ID == existing.ID {
			seen = true
			continue
		}
		if !seen {
			continue
		}
		balance = entries[i].RunningBalance.Add(diff)
		if err := repos.Ledger.SetRunningBalance(ctx, entries[i].ID, balance); err != nil {
			return nil, fmt.Errorf("shift running balance: %w", err)
		}
	}
	if err := repos.Vendors.UpdateBalance(ctx, vendor.ID, balance); err != nil {
		return nil, fmt.Errorf("update vendor balance: %w", err)
	}

	vendorLedgerEntriesTotal.WithLabelValues(string(p.EntryType), outcomeUpdated).Inc()
	return &ledgerPost{entry: *existing, balance: balance, outcome: outcomeUpdated}, nil
}

// afterCommit invalidates the cached balance and publishes the posting.
func (s *LedgerService) afterCommit(ctx context.Context, post *ledgerPost) {
	if post == nil || post.outcome == outcomeDuplicate {
		return
	}
	s.cache.InvalidateVendor(ctx, post.entry.VendorID)
	if err := s.events.PublishLedgerPosted(ctx, &post.entry, post.balance); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish inventory.vendor_ledger.posted event",
			slog.String("vendor_id", post.entry.VendorID),
			slog.String("reference_id", post.entry.ReferenceID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "vendor ledger posted",
		slog.String("vendor_id", post.entry.VendorID),
		slog.String("entry_type", string(post.entry.EntryType)),
		slog.String("reference_id", post.entry.ReferenceID),
		slog.String("outcome", post.outcome),
		slog.String("balance", post.balance.String()),
	)
}

// GetVendorBalance returns the vendor's cached balance. It never writes.
func (s *LedgerService) GetVendorBalance(ctx context.Context, vendorID string) (*domain.VendorBalance, error) {
	if b, ok := s.cache.GetVendorBalance(ctx, vendorID); ok {
		return b, nil
	}

	var v *domain.Vendor
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		v, err = repos.Vendors.GetByID(ctx, vendorID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get vendor balance: %w", err)
	}

	b := &domain.VendorBalance{VendorID: v.ID, Name: v.Name, Balance: v.Balance, UpdatedAt: v.UpdatedAt}
	s.cache.SetVendorBalance(ctx, b)
	return b, nil
}

// ListEntries returns the vendor's ledger, newest first.
func (s *LedgerService) ListEntries(ctx context.Context, vendorID string, page pagination.Params) ([]domain.VendorLedgerEntry, int, error) {
	var (
		entries []domain.VendorLedgerEntry
		total   int
	)
	err := s.store.View(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Vendors.GetByID(ctx, vendorID); err != nil {
			return err
		}
		var err error
		entries, total, err = repos.Ledger.ListByVendor(ctx, vendorID, page)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}

// RebuildVendorBalance recomputes every running balance of the vendor in ledger
// order and resets the cached balance to the last one.
func (s *LedgerService) RebuildVendorBalance(ctx context.Context, vendorID string) (*domain.VendorBalance, error) {
	var (
		result   *domain.VendorBalance
		repaired int
	)
	err := s.store.Execute(ctx, func(ctx context.Context, repos repository.Repositories) error {
		v, err := repos.Vendors.GetForUpdate(ctx, vendorID)
		if err != nil {
			return err
		}
		entries, err := repos.Ledger.ListChronological(ctx, vendorID)
		if err != nil {
			return err
		}

		balance := decimal.Zero
		for i := range entries {
			balance = balance.Add(entries[i].Net())
			if entries[i].RunningBalance.Equal(balance) {
				continue
			}
			if err := repos.Ledger.SetRunningBalance(ctx, entries[i].ID, balance); err != nil {
				return fmt.Errorf("rewrite running balance: %w", err)
			}
			repaired++
		}
		if !v.Balance.Equal(balance) {
			if err := repos.Vendors.UpdateBalance(ctx, vendorID, balance); err != nil {
				return fmt.Errorf("update vendor balance: %w", err)
			}
		}
		result = &domain.VendorBalance{VendorID: v.ID, Name: v.Name, Balance: balance, UpdatedAt: now()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild vendor balance: %w", err)
	}

	s.cache.InvalidateVendor(ctx, vendorID)
	s.logger.InfoContext(ctx, "vendor balance rebuilt",
		slog.String("vendor_id", vendorID),
		slog.Int("entries_repaired", repaired),
		slog.String("balance", result.Balance.String()),
	)
	return result, nil
}
