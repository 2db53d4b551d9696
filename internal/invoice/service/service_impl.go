package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicekit/internal/clock"
	"github.com/smallbiznis/invoicekit/internal/invoice/domain"
	obslogger "github.com/smallbiznis/invoicekit/internal/observability/logger"
	"github.com/smallbiznis/invoicekit/internal/observability/metrics"
	"github.com/smallbiznis/invoicekit/pkg/db"
	"github.com/smallbiznis/invoicekit/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Settings domain.SettingsSource
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	settings domain.SettingsSource
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	settings := p.Settings
	if settings == nil {
		settings = domain.StaticSettings(domain.DefaultSettings())
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    clk,
		repo:     p.Repo,
		settings: settings,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	settings := s.settings.Settings()

	verr := &domain.ValidationError{}
	header := validateHeader(verr, req.InvoiceNumber, req.CustomerName, req.Date, req.Status, domain.InvoiceStatusDraft)
	lines := validateLineItems(verr, req.LineItems, false)

	if header.number != "" {
		taken, err := s.repo.NumberTaken(ctx, s.db, header.number, 0)
		if err != nil {
			return domain.Invoice{}, err
		}
		if taken {
			if len(verr.Fields) == 0 {
				return domain.Invoice{}, &domain.UniquenessError{Field: "invoice_number", Value: header.number}
			}
			addUniqueField(verr, header.number)
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		InvoiceNumber: header.number,
		CustomerName:  header.customer,
		Date:          datatypes.Date(header.date),
		Status:        header.status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := make([]*domain.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, &domain.LineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			Description: line.description,
			Quantity:    line.quantity,
			UnitPrice:   line.unitPrice,
			LineTotal:   line.lineTotal,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		return s.repo.InsertLineItems(ctx, tx, items)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Invoice{}, &domain.UniquenessError{Field: "invoice_number", Value: header.number}
		}
		obslogger.WithContext(ctx, s.log).Error("failed to create invoice", zap.Error(err), zap.String("invoice_number", header.number))
		return domain.Invoice{}, err
	}

	invoice.LineItems = make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		invoice.LineItems = append(invoice.LineItems, *item)
	}
	decorate(&invoice, settings)

	s.metrics.RecordInvoiceCreated(ctx)
	s.metrics.RecordLineItemsWritten(ctx, "create", len(items))
	obslogger.WithInvoice(obslogger.WithContext(ctx, s.log), invoice.ID.String(), invoice.InvoiceNumber).
		Info("invoice created", zap.Int("line_items", len(items)))

	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	decorate(invoice, s.settings.Settings())
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	settings := s.settings.Settings()

	verr := &domain.ValidationError{}
	filter := domain.ListInvoiceFilter{
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		SearchTerms:   strings.Fields(req.Search),
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseInvoiceStatus(raw)
		if !ok {
			verr.Add("status", domain.CodeInvalidChoice, invalidStatusMessage(raw))
		}
		filter.Status = status
	}
	if req.DateAfter != nil {
		after := calendarDate(*req.DateAfter)
		filter.DateAfter = &after
	}
	if req.DateBefore != nil {
		before := calendarDate(*req.DateBefore)
		filter.DateBefore = &before
	}
	if req.AmountDue != nil && settings.AmountDueFilter == domain.AmountDueFilterReject {
		verr.Add("amount_due", domain.CodeNotSupported, "amount_due filtering is not supported")
	}
	if err := verr.OrNil(); err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	page := req.Pagination.Normalize(settings.DefaultPageSize, settings.MaxPageSize)
	items, count, err := s.repo.List(ctx, s.db, filter, option.ParseOrdering(req.Ordering), page)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		decorate(item, settings)
		invoices = append(invoices, *item)
	}

	return domain.ListInvoiceResponse{
		Count:    count,
		Page:     page,
		Invoices: invoices,
	}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	invoiceID, err := parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	settings := s.settings.Settings()

	verr := &domain.ValidationError{}
	header := validateHeader(verr, req.InvoiceNumber, req.CustomerName, req.Date, req.Status, "")
	lines := validateLineItems(verr, req.LineItems, true)

	var (
		updated *domain.Invoice
		written int
		removed int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}

		owned := make(map[snowflake.ID]domain.LineItem, len(existing.LineItems))
		for _, item := range existing.LineItems {
			owned[item.ID] = item
		}
		seen := make(map[snowflake.ID]int, len(lines))
		for i, line := range lines {
			if line.id == nil {
				continue
			}
			if _, ok := owned[*line.id]; !ok {
				verr.Add(domain.LineItemField(i, "id"), domain.CodeUnknownLineItem, "line item does not belong to this invoice")
				continue
			}
			if first, dup := seen[*line.id]; dup {
				verr.Add(domain.LineItemField(i, "id"), domain.CodeDuplicateLineItem,
					"line item is already submitted at details["+strconv.Itoa(first)+"]")
				continue
			}
			seen[*line.id] = i
		}

		if header.number != "" && header.number != existing.InvoiceNumber {
			taken, err := s.repo.NumberTaken(ctx, tx, header.number, invoiceID)
			if err != nil {
				return err
			}
			if taken {
				if len(verr.Fields) == 0 {
					return &domain.UniquenessError{Field: "invoice_number", Value: header.number}
				}
				addUniqueField(verr, header.number)
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		now := s.clock.Now()
		status := header.status
		if status == "" {
			status = existing.Status
		}
		existing.InvoiceNumber = header.number
		existing.CustomerName = header.customer
		existing.Date = datatypes.Date(header.date)
		existing.Status = status
		existing.UpdatedAt = now
		if err := s.repo.UpdateHeader(ctx, tx, existing); err != nil {
			return err
		}

		if settings.Reconciliation == domain.ReconcileReplaceAll {
			keep := make([]snowflake.ID, 0, len(seen))
			for id := range seen {
				keep = append(keep, id)
			}
			removed, err = s.repo.DeleteLineItemsExcept(ctx, tx, invoiceID, keep)
			if err != nil {
				return err
			}
		}

		created := make([]*domain.LineItem, 0, len(lines))
		for _, line := range lines {
			if line.id != nil {
				item := owned[*line.id]
				item.Description = line.description
				item.Quantity = line.quantity
				item.UnitPrice = line.unitPrice
				item.LineTotal = line.lineTotal
				item.UpdatedAt = now
				if err := s.repo.UpdateLineItem(ctx, tx, &item); err != nil {
					return err
				}
				continue
			}
			created = append(created, &domain.LineItem{
				ID:          s.genID.Generate(),
				InvoiceID:   invoiceID,
				Description: line.description,
				Quantity:    line.quantity,
				UnitPrice:   line.unitPrice,
				LineTotal:   line.lineTotal,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if err := s.repo.InsertLineItems(ctx, tx, created); err != nil {
			return err
		}
		written = len(lines)

		updated, err = s.repo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if updated == nil {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Invoice{}, &domain.UniquenessError{Field: "invoice_number", Value: header.number}
		}
		if !errors.Is(err, domain.ErrNotFound) && !domain.IsValidationError(err) && !domain.IsUniquenessError(err) {
			obslogger.WithContext(ctx, s.log).Error("failed to update invoice", zap.Error(err), zap.String("invoice_id", invoiceID.String()))
		}
		return domain.Invoice{}, err
	}

	decorate(updated, settings)

	s.metrics.RecordInvoiceUpdated(ctx)
	s.metrics.RecordLineItemsWritten(ctx, "update", written)
	obslogger.WithInvoice(obslogger.WithContext(ctx, s.log), invoiceID.String(), updated.InvoiceNumber).Info("invoice updated",
		zap.String("reconciliation", string(settings.Reconciliation)),
		zap.Int("line_items_written", written),
		zap.Int64("line_items_removed", removed),
	)

	return *updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}

	var deleted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err = s.repo.Delete(ctx, tx, []snowflake.ID{invoiceID})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordInvoicesDeleted(ctx, deleted)
	obslogger.WithContext(ctx, s.log).Info("invoice deleted", zap.String("invoice_id", invoiceID.String()))
	return nil
}

func (s *Service) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, domain.NewValidationError("ids", domain.CodeRequired, "ids must be a non-empty list")
	}

	verr := &domain.ValidationError{}
	parsed := make([]snowflake.ID, 0, len(ids))
	unique := make(map[snowflake.ID]struct{}, len(ids))
	for i, raw := range ids {
		id, err := parseID(raw)
		if err != nil {
			verr.Add("ids["+strconv.Itoa(i)+"]", domain.CodeInvalid, "invalid invoice id")
			continue
		}
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		parsed = append(parsed, id)
	}
	if err := verr.OrNil(); err != nil {
		return 0, err
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.Delete(ctx, tx, parsed)
		return err
	})
	if err != nil {
		obslogger.WithContext(ctx, s.log).Error("failed to batch delete invoices", zap.Error(err), zap.Int("requested", len(parsed)))
		return 0, err
	}

	s.metrics.RecordInvoicesDeleted(ctx, deleted)
	obslogger.WithContext(ctx, s.log).Info("invoices batch deleted",
		zap.Int("requested", len(parsed)),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func decorate(invoice *domain.Invoice, settings domain.Settings) {
	invoice.TotalRule = settings.TotalRule
	invoice.TotalAmount = domain.TotalAmount(invoice.LineItems, settings.TotalRule)
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty id")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("non-positive id")
	}
	return id, nil
}

func addUniqueField(verr *domain.ValidationError, number string) {
	err := domain.UniquenessError{Field: "invoice_number", Value: number}
	verr.Add("invoice_number", domain.CodeUnique, err.Error())
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
