package ledger

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const (
	uidA = "a1b2c3d4-1111-4222-8333-000000000001"
	uidB = "a1b2c3d4-1111-4222-8333-000000000002"
)

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', detectDelimiter("a;b;c"))
	assert.Equal(t, ',', detectDelimiter("a,b,c"))
	// Ties go to comma.
	assert.Equal(t, ',', detectDelimiter("a"))
}

func TestParseDelimitedSemicolon(t *testing.T) {
	raw := strings.Join([]string{
		"Идентификатор;Статус;Тип;Сумма;Валюта;Дата",
		uidA + ";Успешно;Оплата;1 500,00;RUB;2024-05-01 10:30:00",
		uidB + ";Возврат;Возврат;500,00;RUB;2024-05-02",
	}, "\n")

	txs, err := ParseDelimited([]byte(raw))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	require.Equal(t, uidA, txs[0].UID)
	require.True(t, decimal.RequireFromString("1500").Equal(txs[0].Amount))
	require.Equal(t, "RUB", txs[0].Currency)
	require.Equal(t, StatusSucceeded, txs[0].CanonicalStatus())
	require.Equal(t, StatusRefunded, txs[1].CanonicalStatus())
}

func TestParseDelimitedQuotedFieldWithDelimiter(t *testing.T) {
	raw := strings.Join([]string{
		`Идентификатор,Статус,Сумма,Описание`,
		uidA + `,Оплачено,"1,234.56","Курс ""Основы"", тариф базовый"`,
	}, "\n")

	txs, err := ParseDelimited([]byte(raw))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.True(t, decimal.RequireFromString("1234.56").Equal(txs[0].Amount))
	require.Equal(t, `Курс "Основы", тариф базовый`, txs[0].Description)
}

func TestParseDelimitedDropsInvalidUIDs(t *testing.T) {
	raw := strings.Join([]string{
		"Идентификатор,Статус,Сумма",
		uidA + ",Оплачено,100",
		"не транзакция,Оплачено,100",
		"12345,Оплачено,100",
		",,",
		"Итого,,300",
	}, "\n")

	txs, err := ParseDelimited([]byte(raw))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, uidA, txs[0].UID)
}

func TestParseDelimitedBOM(t *testing.T) {
	raw := "\uFEFF" + "Идентификатор,Статус,Сумма\n" + uidA + ",Оплачено,100\n"
	txs, err := ParseDelimited([]byte(raw))
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestParseDelimitedLegacyEncodingRecovery(t *testing.T) {
	utf8CSV := "Идентификатор;Статус;Сумма\n" + uidA + ";Оплачено;250,00\n"
	legacy, err := charmap.Windows1251.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	txs, err := ParseDelimited(legacy)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "Оплачено", txs[0].RawStatus)
	require.Equal(t, StatusSucceeded, txs[0].CanonicalStatus())
}

func TestParseDelimitedNoIdentifierHeader(t *testing.T) {
	// Missing header is a silent skip, not an error.
	txs, err := ParseDelimited([]byte("foo,bar\n1,2\n"))
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("x"), Format("pdf"))
	require.ErrorIs(t, err, ErrUnreadableInput)
}

func TestValidUID(t *testing.T) {
	assert.True(t, ValidUID(uidA))
	assert.True(t, ValidUID("ABCDEF01-2345-6789-ABCD-EF0123456789"))
	assert.False(t, ValidUID("not-a-uid"))
	assert.False(t, ValidUID("a1b2c3d4-1111-4222-8333-00000000000"))  // short group
	assert.False(t, ValidUID("g1b2c3d4-1111-4222-8333-000000000001")) // non-hex
	assert.False(t, ValidUID(""))
}
