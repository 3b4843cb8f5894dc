// Package dart implements the provider API boundary: the filing metadata
// model, the provider status taxonomy, and the HTTP client that lists
// filings and downloads raw documents.
package dart

import (
	"fmt"
	"strings"
)

// CorpClass classifies the filing issuer's market.
type CorpClass string

// Market classes as the provider encodes them.
const (
	CorpClassExchange CorpClass = "Y" // main exchange (KOSPI)
	CorpClassKOSDAQ   CorpClass = "K"
	CorpClassKONEX    CorpClass = "N"
	CorpClassOther    CorpClass = "E"
)

// FieldErrorReason distinguishes the construction failure modes.
type FieldErrorReason string

// Construction error variants.
const (
	ReasonMissingField FieldErrorReason = "missing field"
	ReasonWrongType    FieldErrorReason = "wrong type"
)

// FieldError reports a required field the provider item lacked or mistyped.
type FieldError struct {
	Field  string
	Reason FieldErrorReason
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("filing field %q: %s", e.Field, e.Reason)
}

// Filing is one entry from the provider's list API. It is constructed once
// per page item and never mutated; after the ingestion attempt completes
// only its receipt number survives in the ingestion state.
type Filing struct {
	CorpCode    string
	CorpName    string
	StockCode   string // empty for unlisted issuers
	CorpClass   CorpClass
	ReportName  string
	ReceiptNo   string // 14-digit globally unique identifier, the dedup key
	FilerName   string // optional
	ReceiptDate string // YYYYMMDD
	Remark      string // optional composite-code string
	ViewerURL   string // derived, not provider-supplied
}

const viewerURLFormat = "https://dart.fss.or.kr/dsaf001/main.do?rcpNo=%s"

// FilingFromMap validates and converts one decoded list item. Required
// fields must be present and strings; optional fields normalize empty or
// missing values to absent.
func FilingFromMap(item map[string]any) (Filing, error) {
	corpCode, err := requiredString(item, "corp_code")
	if err != nil {
		return Filing{}, err
	}
	corpName, err := requiredString(item, "corp_name")
	if err != nil {
		return Filing{}, err
	}
	reportName, err := requiredString(item, "report_nm")
	if err != nil {
		return Filing{}, err
	}
	receiptNo, err := requiredString(item, "rcept_no")
	if err != nil {
		return Filing{}, err
	}
	receiptDate, err := requiredString(item, "rcept_dt")
	if err != nil {
		return Filing{}, err
	}

	return Filing{
		CorpCode:    corpCode,
		CorpName:    corpName,
		StockCode:   optionalString(item, "stock_code"),
		CorpClass:   corpClassFrom(optionalString(item, "corp_cls")),
		ReportName:  reportName,
		ReceiptNo:   receiptNo,
		FilerName:   optionalString(item, "flr_nm"),
		ReceiptDate: receiptDate,
		Remark:      optionalString(item, "rm"),
		ViewerURL:   fmt.Sprintf(viewerURLFormat, receiptNo),
	}, nil
}

func corpClassFrom(raw string) CorpClass {
	switch CorpClass(raw) {
	case CorpClassExchange, CorpClassKOSDAQ, CorpClassKONEX:
		return CorpClass(raw)
	default:
		return CorpClassOther
	}
}

func requiredString(item map[string]any, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", &FieldError{Field: key, Reason: ReasonMissingField}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Field: key, Reason: ReasonWrongType}
	}
	return s, nil
}

func optionalString(item map[string]any, key string) string {
	if s, ok := item[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
