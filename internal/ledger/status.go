package ledger

import "strings"

// Status is the fixed internal payment status taxonomy. Every provider,
// localized and legacy spelling collapses into one of the five persisted
// values. StatusUnknown is a transient canonicalizer result and must never
// be written to the store.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusRefunded  Status = "refunded"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
	StatusUnknown   Status = "unknown"
)

// Transaction type vocabulary. Matched by substring against the normalized
// raw type; a refund or cancellation type overrides whatever the status
// column says.
var (
	refundTypeMarkers = []string{"refund", "chargeback", "возврат"}
	cancelTypeMarkers = []string{"cancel", "void", "reversal", "отмен", "аннул"}
)

// Failure indicators looked up in the free-text message.
var failureMessageMarkers = []string{
	"declined", "insufficient", "rejected", "error",
	"отклон", "недостаточно", "ошибк", "отказ",
}

// statusSynonyms is the exact-match dictionary: normalized raw status to
// canonical value. Covers current provider spellings, the localized export
// vocabulary and legacy values still present in old rows.
var statusSynonyms = map[string]Status{
	"succeeded":  StatusSucceeded,
	"success":    StatusSucceeded,
	"successful": StatusSucceeded,
	"completed":  StatusSucceeded,
	"complete":   StatusSucceeded,
	"captured":   StatusSucceeded,
	"paid":       StatusSucceeded,
	"confirmed":  StatusSucceeded,
	"settled":    StatusSucceeded,
	"оплачен":    StatusSucceeded,
	"оплачено":   StatusSucceeded,
	"успешно":    StatusSucceeded,
	"успешный":   StatusSucceeded,
	"завершен":   StatusSucceeded,
	"завершено":  StatusSucceeded,
	"исполнен":   StatusSucceeded,

	"refunded":        StatusRefunded,
	"refund":          StatusRefunded,
	"charged_back":    StatusRefunded,
	"chargeback":      StatusRefunded,
	"возврат":         StatusRefunded,
	"возвращен":       StatusRefunded,
	"возвращено":      StatusRefunded,
	"возврат средств": StatusRefunded,

	"canceled":         StatusCanceled,
	"cancelled":        StatusCanceled,
	"cancel":           StatusCanceled,
	"canceled_by_user": StatusCanceled,
	"void":             StatusCanceled,
	"voided":           StatusCanceled,
	"annulled":         StatusCanceled,
	"expired":          StatusCanceled,
	"отменен":          StatusCanceled,
	"отменено":         StatusCanceled,
	"отмена":           StatusCanceled,
	"аннулирован":      StatusCanceled,
	"истек":            StatusCanceled,

	"failed":       StatusFailed,
	"fail":         StatusFailed,
	"failure":      StatusFailed,
	"declined":     StatusFailed,
	"decline":      StatusFailed,
	"rejected":     StatusFailed,
	"error":        StatusFailed,
	"unsuccessful": StatusFailed,
	"ошибка":       StatusFailed,
	"отклонен":     StatusFailed,
	"отклонено":    StatusFailed,
	"неуспешно":    StatusFailed,
	"отказано":     StatusFailed,

	"pending":             StatusPending,
	"processing":          StatusPending,
	"in_progress":         StatusPending,
	"in progress":         StatusPending,
	"waiting_for_capture": StatusPending,
	"authorized":          StatusPending,
	"hold":                StatusPending,
	"new":                 StatusPending,
	"created":             StatusPending,
	"в обработке":         StatusPending,
	"обрабатывается":      StatusPending,
	"ожидание":            StatusPending,
	"ожидает":             StatusPending,
	"в ожидании":          StatusPending,
}

// Substring fallback, checked strictly in this order: success-like first,
// pending-like last.
var substringFallback = []struct {
	status  Status
	markers []string
}{
	{StatusSucceeded, []string{"succe", "paid", "complet", "captur", "оплач", "успе", "заверш"}},
	{StatusRefunded, []string{"refund", "chargeback", "возвр"}},
	{StatusCanceled, []string{"cancel", "void", "отмен", "аннул"}},
	{StatusFailed, []string{"fail", "decl", "reject", "error", "ошиб", "отклон", "отказ"}},
	{StatusPending, []string{"pend", "process", "wait", "hold", "обработ", "ожид"}},
}

// Canonicalize maps a provider (rawStatus, rawType, message) triple onto the
// fixed taxonomy. Priority, first match wins:
//
//  1. refund-vocabulary transaction type,
//  2. cancel-vocabulary transaction type,
//  3. failure indicator in the free-text message,
//  4. exact synonym-dictionary lookup of the status,
//  5. ordered substring fallback on the status,
//  6. StatusUnknown.
//
// StatusUnknown is never defaulted to pending; callers must exclude such
// rows from canonical writes and surface them for manual review.
func Canonicalize(rawStatus, rawType, message string) Status {
	typ := normalizeVocab(rawType)
	if containsAny(typ, refundTypeMarkers) {
		return StatusRefunded
	}
	if containsAny(typ, cancelTypeMarkers) {
		return StatusCanceled
	}

	if containsAny(normalizeVocab(message), failureMessageMarkers) {
		return StatusFailed
	}

	status := normalizeVocab(rawStatus)
	if canonical, ok := statusSynonyms[status]; ok {
		return canonical
	}

	for _, fb := range substringFallback {
		if containsAny(status, fb.markers) {
			return fb.status
		}
	}
	return StatusUnknown
}

// NormalizeType collapses the raw transaction-type vocabulary into the three
// values persisted on payment records and compared by the differ.
func NormalizeType(rawType string) string {
	typ := normalizeVocab(rawType)
	if containsAny(typ, refundTypeMarkers) {
		return "refund"
	}
	if containsAny(typ, cancelTypeMarkers) {
		return "cancellation"
	}
	return "payment"
}

// normalizeVocab lower-cases and collapses all whitespace runs, making the
// dictionary lookup case- and whitespace-insensitive.
func normalizeVocab(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
