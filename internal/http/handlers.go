package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/billing"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/repository"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/search"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/service"
)

// BillingAPI is the part of service.BillingService the handlers use.
type BillingAPI interface {
	ComputeBill(ctx context.Context, req service.BillRequest) (*billing.Computation, error)
	CreateBill(ctx context.Context, req service.BillRequest) (*billing.Computation, error)
	GetBill(ctx context.Context, id int64) (domain.Bill, error)
	GetBillByNumber(ctx context.Context, number string) (domain.Bill, error)
	ListBills(ctx context.Context, f repository.BillFilter) ([]domain.Bill, error)
	UpdateBill(ctx context.Context, id int64, patch billing.BillPatch) (domain.Bill, []error, error)
	TransitionBill(ctx context.Context, id int64, to domain.BillStatus) (domain.Bill, error)
	MarkPaid(ctx context.Context, id int64) (domain.Bill, error)
	DeleteBill(ctx context.Context, id int64) error
	ListOverdue(ctx context.Context, asOf time.Time, utilityID *int64) ([]billing.OverdueBill, error)
	SummarizeUserYear(ctx context.Context, userID int64, year int) (analytics.UserYearSummary, error)
	SummarizeUtilityMonths(ctx context.Context, utilityID int64, year int) ([]analytics.MonthSummary, error)
	CategorizeUsers(ctx context.Context, utilityID int64, year int) ([]analytics.CategoryRow, error)
	Search(ctx context.Context, term string, userID *int64) ([]search.Hit, error)
	ArchiveMonthlyReport(ctx context.Context, utilityID int64, year int) (service.ArchivedReport, error)
	GetArchivedReport(ctx context.Context, utilityID int64, year int) (*cloud.MonthlyReport, error)
	Now() time.Time
}

// ReadingAPI is the part of service.ReadingService the handlers use.
type ReadingAPI interface {
	Ingest(ctx context.Context, rd *domain.MeterReading) error
	GetReadings(ctx context.Context, meterID int64, from, to time.Time) ([]domain.MeterReading, error)
	Latest(ctx context.Context, meterID int64) (domain.MeterReading, error)
	ConsumptionStats(ctx context.Context, meterID int64, from, to time.Time) (analytics.ConsumptionStats, error)
}

var validate = validator.New()

func Register(app *fiber.App, svcs *service.Services) {
	Mount(app, svcs.Bills, svcs.Readings)
}

// Mount registers the billing and reading routes.
func Mount(app *fiber.App, bills BillingAPI, readings ReadingAPI) {
	h := &handlers{bills: bills, readings: readings}

	g := app.Group("/")
	g.Post("bills", h.createBill)
	g.Post("bills/compute", h.computeBill)
	g.Get("bills", h.listBills)
	g.Get("bills/overdue", h.listOverdue)
	g.Get("bills/number/:number", h.getBillByNumber)
	g.Get("bills/:id", h.getBill)
	g.Patch("bills/:id", h.updateBill)
	g.Post("bills/:id/transition", h.transitionBill)
	g.Post("bills/:id/pay", h.markPaid)
	g.Delete("bills/:id", h.deleteBill)

	g.Get("users/:id/summary", h.userSummary)
	g.Get("utilities/:id/monthly", h.utilityMonths)
	g.Get("utilities/:id/categories", h.userCategories)
	g.Post("utilities/:id/reports", h.archiveReport)
	g.Get("utilities/:id/reports", h.getReport)
	g.Get("search", h.search)

	g.Post("readings", h.ingestReading)
	g.Get("meters/:id/readings", h.meterReadings)
	g.Get("meters/:id/readings/latest", h.latestReading)
	g.Get("meters/:id/stats", h.meterStats)
}

type handlers struct {
	bills    BillingAPI
	readings ReadingAPI
}

func (h *handlers) createBill(c *fiber.Ctx) error {
	var req service.BillRequest
	if err := decodeValid(c, &req); err != nil {
		return fail(c, err)
	}
	comp, err := h.bills.CreateBill(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(computationBody(comp))
}

func (h *handlers) computeBill(c *fiber.Ctx) error {
	var req service.BillRequest
	if err := decodeValid(c, &req); err != nil {
		return fail(c, err)
	}
	comp, err := h.bills.ComputeBill(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(computationBody(comp))
}

func (h *handlers) listBills(c *fiber.Ctx) error {
	var f repository.BillFilter
	var err error
	if f.UserID, err = optionalID(c, "user_id"); err != nil {
		return fail(c, err)
	}
	if f.MeterID, err = optionalID(c, "meter_id"); err != nil {
		return fail(c, err)
	}
	if f.UtilityID, err = optionalID(c, "utility_id"); err != nil {
		return fail(c, err)
	}
	if s := c.Query("status"); s != "" {
		status := domain.BillStatus(s)
		f.Status = &status
	}
	f.Year = c.QueryInt("year")
	f.Limit = c.QueryInt("limit", 100)
	f.Offset = c.QueryInt("offset")

	items, err := h.bills.ListBills(c.UserContext(), f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(items)
}

func (h *handlers) listOverdue(c *fiber.Ctx) error {
	asOf := h.bills.Now()
	if s := c.Query("as_of"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return fail(c, err)
		}
		asOf = t
	}
	utilityID, err := optionalID(c, "utility_id")
	if err != nil {
		return fail(c, err)
	}
	items, err := h.bills.ListOverdue(c.UserContext(), asOf, utilityID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(items)
}

func (h *handlers) getBill(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	b, err := h.bills.GetBill(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(b)
}

func (h *handlers) getBillByNumber(c *fiber.Ctx) error {
	b, err := h.bills.GetBillByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(b)
}

func (h *handlers) updateBill(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	var patch billing.BillPatch
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return fail(c, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput))
	}
	b, warnings, err := h.bills.UpdateBill(c.UserContext(), id, patch)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"bill": b, "warnings": messages(warnings)})
}

type transitionRequest struct {
	Status domain.BillStatus `json:"status" validate:"required"`
}

func (h *handlers) transitionBill(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	var req transitionRequest
	if err := decodeValid(c, &req); err != nil {
		return fail(c, err)
	}
	b, err := h.bills.TransitionBill(c.UserContext(), id, req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(b)
}

func (h *handlers) markPaid(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	b, err := h.bills.MarkPaid(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(b)
}

func (h *handlers) deleteBill(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.bills.DeleteBill(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) userSummary(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	s, err := h.bills.SummarizeUserYear(c.UserContext(), id, h.queryYear(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(s)
}

func (h *handlers) utilityMonths(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.bills.SummarizeUtilityMonths(c.UserContext(), id, h.queryYear(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}

func (h *handlers) userCategories(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.bills.CategorizeUsers(c.UserContext(), id, h.queryYear(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}

func (h *handlers) archiveReport(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	rep, err := h.bills.ArchiveMonthlyReport(c.UserContext(), id, h.queryYear(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rep)
}

func (h *handlers) getReport(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	rep, err := h.bills.GetArchivedReport(c.UserContext(), id, h.queryYear(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rep)
}

func (h *handlers) search(c *fiber.Ctx) error {
	userID, err := optionalID(c, "user_id")
	if err != nil {
		return fail(c, err)
	}
	hits, err := h.bills.Search(c.UserContext(), c.Query("q"), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(hits)
}

type readingRequest struct {
	MeterID        int64               `json:"meter_id" validate:"required,gt=0"`
	Timestamp      time.Time           `json:"timestamp" validate:"required"`
	EnergyConsumed decimal.Decimal     `json:"energy_consumed"`
	PowerFactor    decimal.NullDecimal `json:"power_factor"`
	Voltage        decimal.NullDecimal `json:"voltage"`
	Current        decimal.NullDecimal `json:"current"`
	Frequency      decimal.NullDecimal `json:"frequency"`
	ReactivePower  decimal.NullDecimal `json:"reactive_power"`
	ApparentPower  decimal.NullDecimal `json:"apparent_power"`
}

func (h *handlers) ingestReading(c *fiber.Ctx) error {
	var req readingRequest
	if err := decodeValid(c, &req); err != nil {
		return fail(c, err)
	}
	rd := &domain.MeterReading{
		MeterID:        req.MeterID,
		Timestamp:      req.Timestamp,
		EnergyConsumed: req.EnergyConsumed,
		PowerFactor:    req.PowerFactor,
		Voltage:        req.Voltage,
		Current:        req.Current,
		Frequency:      req.Frequency,
		ReactivePower:  req.ReactivePower,
		ApparentPower:  req.ApparentPower,
	}
	if err := h.readings.Ingest(c.UserContext(), rd); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rd)
}

func (h *handlers) meterReadings(c *fiber.Ctx) error {
	id, from, to, err := h.meterRange(c)
	if err != nil {
		return fail(c, err)
	}
	items, err := h.readings.GetReadings(c.UserContext(), id, from, to)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(items)
}

func (h *handlers) latestReading(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}
	rd, err := h.readings.Latest(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rd)
}

func (h *handlers) meterStats(c *fiber.Ctx) error {
	id, from, to, err := h.meterRange(c)
	if err != nil {
		return fail(c, err)
	}
	st, err := h.readings.ConsumptionStats(c.UserContext(), id, from, to)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

func computationBody(comp *billing.Computation) fiber.Map {
	return fiber.Map{"bill": comp.Bill, "slots": comp.Slots, "warnings": messages(comp.Warnings)}
}

func messages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func decodeValid(c *fiber.Ctx, dst any) error {
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", c.Params("id"), domain.ErrInvalidInput)
	}
	return id, nil
}

func optionalID(c *fiber.Ctx, key string) (*int64, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid %s %q: %w", key, s, domain.ErrInvalidInput)
	}
	return &id, nil
}

func (h *handlers) queryYear(c *fiber.Ctx) int {
	return c.QueryInt("year", h.bills.Now().UTC().Year())
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return t, fmt.Errorf("invalid time %q: %w", s, domain.ErrInvalidInput)
	}
	return t, nil
}

func (h *handlers) meterRange(c *fiber.Ctx) (int64, time.Time, time.Time, error) {
	id, err := pathID(c)
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	to := h.bills.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if s := c.Query("from"); s != "" {
		if from, err = parseTime(s); err != nil {
			return 0, time.Time{}, time.Time{}, err
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = parseTime(s); err != nil {
			return 0, time.Time{}, time.Time{}, err
		}
	}
	return id, from, to, nil
}

func statusFor(code string) int {
	switch code {
	case domain.CodeNotFound:
		return fiber.StatusNotFound
	case domain.CodeInvalidTransition, domain.CodeAlreadyPaid, domain.CodeBillImmutable,
		domain.CodeDuplicateBillNumber, domain.CodeNotDeletable:
		return fiber.StatusConflict
	case domain.CodeInvalidConsumption, domain.CodeUserNotBillable:
		return fiber.StatusUnprocessableEntity
	case domain.CodeInvalidInput:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	code := domain.CodeOf(err)
	if code == "" {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "code": "INTERNAL"})
	}
	return c.Status(statusFor(code)).JSON(fiber.Map{"error": err.Error(), "code": code})
}
