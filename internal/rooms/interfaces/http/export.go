package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"roomguard/internal/observability/metrics"
	rooms "roomguard/internal/rooms/domain"
)

const (
	formatXLSX = "xlsx"
	formatPDF  = "pdf"
)

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, roomID int64, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	q, err := parseGasQuery(r, roomID)
	if err != nil {
		result = metrics.ResultError
		writeError(w, http.StatusBadRequest, err.Error(), rooms.KindInvalid)
		return
	}
	room, err := h.ingest.Room(r.Context(), roomID)
	if err != nil {
		result = metrics.ResultError
		respondDomainError(w, err)
		return
	}
	list, err := h.ingest.History(r.Context(), q)
	if err != nil {
		result = metrics.ResultError
		respondDomainError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case formatXLSX:
		data, err = BuildReadingsXLSX(room, list)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		data, err = BuildReadingsPDF(room, list)
		contentType = "application/pdf"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("gas level export failed",
			zap.String("format", format),
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "export failed", rooms.KindPersistence)
		return
	}

	filename := fmt.Sprintf("room-%d-gas-levels.%s", roomID, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BuildReadingsPDF renders the readings of a room as a table.
func BuildReadingsPDF(room *rooms.Room, readings []rooms.GasReading) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Gas Level Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Room: %s (#%d)", room.Name, room.ID))
	pdf.Ln(5)
	if room.SpaceType != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Type: %s", room.SpaceType))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", len(readings)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Recorded At (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Gas Level (PPM)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, reading := range readings {
		pdf.CellFormat(70, 6, reading.RecordedAt.UTC().Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.1f", reading.GasLevel), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReadingsXLSX renders the readings of a room as a workbook with summary and readings sheets.
func BuildReadingsXLSX(room *rooms.Room, readings []rooms.GasReading) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	readingsSheet := "readings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Gas Level Report")
	_ = f.SetCellValue(summarySheet, "A3", "Room")
	_ = f.SetCellValue(summarySheet, "B3", room.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Room ID")
	_ = f.SetCellValue(summarySheet, "B4", room.ID)
	_ = f.SetCellValue(summarySheet, "A5", "Type")
	_ = f.SetCellValue(summarySheet, "B5", room.SpaceType)
	_ = f.SetCellValue(summarySheet, "A6", "Readings")
	_ = f.SetCellValue(summarySheet, "B6", len(readings))

	_ = f.SetCellValue(readingsSheet, "A1", "Recorded At (UTC)")
	_ = f.SetCellValue(readingsSheet, "B1", "Gas Level (PPM)")
	for i, reading := range readings {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), reading.RecordedAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), reading.GasLevel)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
