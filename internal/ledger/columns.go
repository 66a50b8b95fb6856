package ledger

import (
	"strings"
	"time"
	"unicode"
)

// uidHeaderLabels identify the unique-identifier column. Used both for
// header-row discovery in workbooks and for column resolution. A header cell
// matches a label exactly or by prefix after normalization.
var uidHeaderLabels = []string{
	"идентификатор",
	"id операции",
	"id транзакции",
	"номер транзакции",
	"номер операции",
	"transaction id",
	"payment id",
	"uid",
}

// columnMap holds resolved zero-based column indexes; -1 means the field has
// no column in this sheet.
type columnMap struct {
	uid      int
	status   int
	txType   int
	amount   int
	currency int
	date     int
	email    int
	card     int
	message  int
}

// fieldLabels drives header-to-field resolution: for each field, in this
// fixed priority order, the first yet-unclaimed header whose normalized text
// contains one of the substrings wins.
var fieldLabels = []struct {
	field string
	subs  []string
}{
	{"status", []string{"статус", "status", "состояние"}},
	{"type", []string{"тип", "type", "операция", "operation"}},
	{"amount", []string{"сумма", "amount", "итого"}},
	{"currency", []string{"валюта", "currency"}},
	{"date", []string{"дата", "date", "время", "time", "создан"}},
	{"email", []string{"почта", "email", "e-mail"}},
	{"card", []string{"карта", "card", "маска", "pan"}},
	{"message", []string{"сообщение", "описание", "message", "description", "комментарий"}},
}

func normalizeHeader(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func isUIDHeader(cell string) bool {
	norm := normalizeHeader(cell)
	if norm == "" {
		return false
	}
	for _, label := range uidHeaderLabels {
		if norm == label || strings.HasPrefix(norm, label) {
			return true
		}
	}
	return false
}

// resolveColumns maps a header row onto semantic fields. The identifier
// column is mandatory; everything else is best effort.
func resolveColumns(headers []string) (columnMap, bool) {
	cm := columnMap{uid: -1, status: -1, txType: -1, amount: -1, currency: -1, date: -1, email: -1, card: -1, message: -1}
	claimed := make(map[int]bool, len(headers))

	for i, h := range headers {
		if isUIDHeader(h) {
			cm.uid = i
			claimed[i] = true
			break
		}
	}
	if cm.uid < 0 {
		return cm, false
	}

	for _, fl := range fieldLabels {
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			norm := normalizeHeader(h)
			if norm == "" || !containsAny(norm, fl.subs) {
				continue
			}
			claimed[i] = true
			switch fl.field {
			case "status":
				cm.status = i
			case "type":
				cm.txType = i
			case "amount":
				cm.amount = i
			case "currency":
				cm.currency = i
			case "date":
				cm.date = i
			case "email":
				cm.email = i
			case "card":
				cm.card = i
			case "message":
				cm.message = i
			}
			break
		}
	}
	return cm, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseCardMask splits cells like "Visa **4242" or "555555******4444" into
// a brand and the last four digits.
func parseCardMask(s string) (brand, last4 string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}

	var letters strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters.WriteRune(r)
		} else if letters.Len() > 0 {
			break
		}
	}
	brand = letters.String()

	var digits []rune
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) >= 4 {
		last4 = string(digits[len(digits)-4:])
	}
	return brand, last4
}

// rowToTransaction converts one sheet row into a Transaction. Rows whose
// identifier cell fails the strict UID format are dropped here and never
// reach the differ.
func rowToTransaction(cells []string, cm columnMap) (Transaction, bool) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	uid := cell(cm.uid)
	if !ValidUID(uid) {
		return Transaction{}, false
	}

	tx := Transaction{
		UID:           strings.ToLower(uid),
		RawStatus:     cell(cm.status),
		RawType:       cell(cm.txType),
		Description:   cell(cm.message),
		Amount:        ParseAmount(cell(cm.amount)),
		Currency:      strings.ToUpper(cell(cm.currency)),
		PaidAt:        parseDate(cell(cm.date)),
		CustomerEmail: strings.ToLower(cell(cm.email)),
	}
	tx.CardBrand, tx.CardLast4 = parseCardMask(cell(cm.card))
	return tx, true
}
