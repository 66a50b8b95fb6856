package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	// Payments sheet: preamble rows before the header, header at row 3.
	_, err := f.NewSheet("Платежи")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Платежи", "A1", &[]interface{}{"Отчет за период"}))
	require.NoError(t, f.SetSheetRow("Платежи", "A2", &[]interface{}{"01.05.2024 — 31.05.2024"}))
	require.NoError(t, f.SetSheetRow("Платежи", "A3", &[]interface{}{
		"Идентификатор платежа", "Статус", "Тип операции", "Сумма", "Валюта", "Дата создания",
	}))
	require.NoError(t, f.SetSheetRow("Платежи", "A4", &[]interface{}{
		uidA, "Оплачено", "Оплата", "1 500,00", "RUB", "2024-05-01 10:30:00",
	}))
	require.NoError(t, f.SetSheetRow("Платежи", "A5", &[]interface{}{
		"Итого", "", "", "1 500,00", "", "",
	}))
	require.NoError(t, f.SetSheetRow("Платежи", "A6", &[]interface{}{
		uidB, "Возврат", "Возврат", "500,00", "RUB", "2024-05-02 12:00:00",
	}))

	// Summary sheet without an identifier column: must be skipped.
	_, err = f.NewSheet("Сводка")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Сводка", "A1", &[]interface{}{"Показатель", "Значение"}))
	require.NoError(t, f.SetSheetRow("Сводка", "A2", &[]interface{}{"Оборот", "2 000,00"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	txs, err := ParseWorkbook(buildWorkbook(t))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	require.Equal(t, uidA, txs[0].UID)
	require.Equal(t, StatusSucceeded, txs[0].CanonicalStatus())
	require.Equal(t, "RUB", txs[0].Currency)
	require.Equal(t, uidB, txs[1].UID)
	require.Equal(t, StatusRefunded, txs[1].CanonicalStatus())
}

func TestParseWorkbookHeaderBeyondScanLimit(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	// Header buried at row 20: sheet is skipped, non-fatally.
	require.NoError(t, f.SetSheetRow("Sheet1", "A20", &[]interface{}{"Идентификатор", "Сумма"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A21", &[]interface{}{uidA, "100"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	txs, err := ParseWorkbook(buf.Bytes())
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestParseWorkbookUnreadable(t *testing.T) {
	_, err := ParseWorkbook([]byte("definitely not a zip archive"))
	require.ErrorIs(t, err, ErrUnreadableInput)
}
