package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
)

const defaultReportRangeDays = 30

// ReportHandler отдаёт отчёт по жизненному циклу заказов.
type ReportHandler struct {
	service ReportProvider
	log     *logger.Logger
	cfg     *config.ReportConfig
}

// NewReportHandler создает новый обработчик отчётов.
func NewReportHandler(service ReportProvider, log *logger.Logger, cfg *config.ReportConfig) *ReportHandler {
	return &ReportHandler{
		service: service,
		log:     log,
		cfg:     cfg,
	}
}

// Lifecycle возвращает отчёт за период с возможностью экспорта в CSV.
func (h *ReportHandler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	filter, format, err := parseReportFilter(r)
	if err != nil {
		writeServiceError(w, h.log, err, "Invalid report filter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout(h.cfg))
	defer cancel()

	report, err := h.service.GetLifecycleReport(ctx, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load report")
		return
	}

	if format == "csv" {
		if err := writeLifecycleCSV(w, report); err != nil {
			h.log.WithError(err).Warn("Failed to stream lifecycle CSV")
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, report)
}

// parseReportFilter читает from/to в формате YYYY-MM-DD. Без параметров берутся последние 30 дней.
// Ширину диапазона проверяет сервис.
func parseReportFilter(r *http.Request) (*models.ReportFilter, string, error) {
	query := r.URL.Query()
	now := time.Now().UTC()

	to := endOfDay(now)
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, "", malformedQuery("invalid 'to' date, expected YYYY-MM-DD")
		}
		to = endOfDay(parsed)
	}

	from := startOfDay(to.AddDate(0, 0, -defaultReportRangeDays+1))
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, "", malformedQuery("invalid 'from' date, expected YYYY-MM-DD")
		}
		from = startOfDay(parsed)
	}

	format := strings.ToLower(query.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		return nil, "", malformedQuery("format must be json or csv")
	}

	return &models.ReportFilter{From: from, To: to}, format, nil
}

func malformedQuery(msg string) error {
	return apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, msg, nil)
}

func writeLifecycleCSV(w http.ResponseWriter, report *models.LifecycleReport) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=lifecycle.csv")
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	rangeLabel := fmt.Sprintf("%s..%s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
	_ = writer.Write([]string{"section", "key", "count", "amount"})
	_ = writer.Write([]string{"refunded", rangeLabel, "", fmt.Sprintf("%.2f", report.RefundedAmount)})

	statuses := make([]string, 0, len(report.StatusCounts))
	for status := range report.StatusCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		_ = writer.Write([]string{"status", status, strconv.Itoa(report.StatusCounts[status]), ""})
	}

	for _, c := range report.Coupons {
		_ = writer.Write([]string{"coupon", c.Code, strconv.Itoa(c.Redemptions), fmt.Sprintf("%.2f", c.TotalDiscount)})
	}

	writer.Flush()
	return writer.Error()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Millisecond*999), time.UTC)
}

func reportTimeout(cfg *config.ReportConfig) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}
