package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"livecharge-api/internal/observability/metrics"
	stations "livecharge-api/internal/stations/domain"
)

type exportFormat string

const (
	exportXLSX exportFormat = "xlsx"
	exportPDF  exportFormat = "pdf"
)

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format exportFormat) {
	start := time.Now()
	views, err := h.queryArea(r)
	if err != nil {
		metrics.ObserveExport(string(format), metrics.ResultError, time.Since(start))
		h.writeError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case exportXLSX:
		data, err = BuildStationsXLSX(views)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case exportPDF:
		data, err = BuildStationsPDF(views)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveExport(string(format), metrics.ResultError, time.Since(start))
		h.logger.Error("station export failed", zap.String("format", string(format)), zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(string(format), metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=stations.%s", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BuildStationsXLSX renders one row per station and one row per charger.
func BuildStationsXLSX(views []stations.StationView) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	stationsSheet := "stations"
	chargersSheet := "chargers"
	if err := f.SetSheetName("Sheet1", stationsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(chargersSheet); err != nil {
		return nil, err
	}

	header := []any{"ID", "Lat", "Lon", "Address", "Sources", "Chargers", "Events", "Comments", "Last Event", "Average Rating"}
	if err := f.SetSheetRow(stationsSheet, "A1", &header); err != nil {
		return nil, err
	}
	chargerHeader := []any{"Station ID", "Network", "OCPI ID"}
	if err := f.SetSheetRow(chargersSheet, "A1", &chargerHeader); err != nil {
		return nil, err
	}

	chargerRow := 2
	for i, view := range views {
		row := []any{
			view.ID,
			view.Point.Lat,
			view.Point.Lon,
			deref(view.Address),
			formatSources(view.Sources),
			len(view.Chargers),
			len(view.Events),
			len(view.Comments),
			formatLastEvent(view.LastEvent),
			formatRating(view.AverageRating),
		}
		if err := f.SetSheetRow(stationsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
		for _, charger := range view.Chargers {
			id := ""
			if len(charger.IDs) > 0 {
				id = charger.IDs[0]
			}
			values := []any{view.ID, charger.Network, id}
			if err := f.SetSheetRow(chargersSheet, fmt.Sprintf("A%d", chargerRow), &values); err != nil {
				return nil, err
			}
			chargerRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStationsPDF renders a station table.
func BuildStationsPDF(views []stations.StationView) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Charging Stations")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Stations: %d", len(views)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(20, 6, "ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Coordinates", "1", 0, "C", false, 0, "")
	pdf.CellFormat(80, 6, "Sources", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Chargers", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Last Event", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Rating", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, view := range views {
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", view.ID), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.5f, %.5f", view.Point.Lat, view.Point.Lon), "1", 0, "L", false, 0, "")
		pdf.CellFormat(80, 6, formatSources(view.Sources), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", len(view.Chargers)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, formatLastEvent(view.LastEvent), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, formatRating(view.AverageRating), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatSources(sources []stations.SourceRef) string {
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		parts = append(parts, fmt.Sprintf("%s:%d", source.Source, source.InnerID))
	}
	return strings.Join(parts, ", ")
}

func formatLastEvent(event *stations.Event) string {
	if event == nil {
		return ""
	}
	return event.ChargedAt.UTC().Format(time.RFC3339)
}

func formatRating(rating *float64) string {
	if rating == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *rating)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
