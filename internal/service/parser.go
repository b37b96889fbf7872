package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParsedFields is the result of extracting structured fields from a
// transcribed confirmation message. Fields that no pattern matched stay at
// their zero value and are listed in DefaultedFields; parsing never fails.
type ParsedFields struct {
	TrxCode         string
	Amount          decimal.Decimal
	SenderPhone     string
	SenderName      string
	TrxDate         time.Time
	Confidence      float64
	DefaultedFields []string
}

var (
	reTrxCode = regexp.MustCompile(`\b[A-Za-z0-9]{10}\b`)
	reAmount  = regexp.MustCompile(`(?i)(?:ksh|kes|sh)\s*\.?\s*([\d,]+(?:\.\d{1,2})?)`)
	rePhone   = regexp.MustCompile(`\b254\d{9}\b`)
	reSender  = regexp.MustCompile(`(?i)\bfrom\s+(.*?)\s*\b254\d{9}\b`)
	reDate    = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	reTime    = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:AM|PM)?`)
)

var dateLayouts = []string{
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06 3:04 PM",
	"1/2/06",
}

// extractorFunc pulls fields out of one message format, reporting how
// confident it is that the format applied.
type extractorFunc func(text string, now time.Time) (ParsedFields, float64)

type extractor struct {
	name    string
	floor   float64
	extract extractorFunc
}

// Parser extracts structured fields from free-form confirmation text. It is
// an ordered chain of format-specific extractors; the first one whose
// confidence clears its floor wins, and the final fallback zero-fills so the
// entry can still be stored for human verification.
type Parser struct {
	chain []extractor
	now   func() time.Time
}

// NewParser creates a new confirmation text parser
func NewParser() *Parser {
	p := &Parser{now: time.Now}
	p.chain = []extractor{
		{name: "mpesa-confirmation", floor: 0.8, extract: p.extractConfirmation},
		{name: "generic", floor: 0.2, extract: p.extractAnywhere},
	}
	return p
}

// Parse never fails; at worst it returns zero-filled fields with
// confidence 0 and every field listed as defaulted.
func (p *Parser) Parse(rawText string) ParsedFields {
	now := p.now()
	for _, ex := range p.chain {
		fields, confidence := ex.extract(rawText, now)
		if confidence >= ex.floor {
			fields.Confidence = confidence
			return fields
		}
	}

	return ParsedFields{
		TrxDate:         now,
		DefaultedFields: []string{"trx_code", "amount", "sender_phone", "sender_name", "trx_date"},
	}
}

// extractConfirmation handles the standard confirmation layout: a receipt
// code, "Confirmed", an amount, "received from <name> <phone>" and a date.
func (p *Parser) extractConfirmation(text string, now time.Time) (ParsedFields, float64) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "confirmed") || !strings.Contains(lower, "from") {
		return ParsedFields{}, 0
	}
	return p.extractAnywhere(text, now)
}

// extractAnywhere applies the field rules independently over the whole text
func (p *Parser) extractAnywhere(text string, now time.Time) (ParsedFields, float64) {
	fields := ParsedFields{}
	found := 0

	if code := reTrxCode.FindString(text); code != "" {
		fields.TrxCode = strings.ToUpper(code)
		found++
	} else {
		fields.DefaultedFields = append(fields.DefaultedFields, "trx_code")
	}

	if m := reAmount.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if amount, err := decimal.NewFromString(raw); err == nil {
			fields.Amount = amount
			found++
		} else {
			fields.DefaultedFields = append(fields.DefaultedFields, "amount")
		}
	} else {
		fields.DefaultedFields = append(fields.DefaultedFields, "amount")
	}

	if phone := rePhone.FindString(text); phone != "" {
		fields.SenderPhone = phone
		found++
	} else {
		fields.DefaultedFields = append(fields.DefaultedFields, "sender_phone")
	}

	if m := reSender.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		fields.SenderName = strings.TrimSpace(m[1])
		found++
	} else {
		fields.DefaultedFields = append(fields.DefaultedFields, "sender_name")
	}

	if date, ok := p.extractDate(text); ok {
		fields.TrxDate = date
		found++
	} else {
		fields.TrxDate = now
		fields.DefaultedFields = append(fields.DefaultedFields, "trx_date")
	}

	return fields, float64(found) / 5
}

// extractDate parses the first date-shaped token, combined with a time token
// when one is present.
func (p *Parser) extractDate(text string) (time.Time, bool) {
	date := reDate.FindString(text)
	if date == "" {
		return time.Time{}, false
	}

	candidate := date
	if clock := reTime.FindString(text); clock != "" {
		candidate = date + " " + strings.ToUpper(clock)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	// Time token present but in an unexpected shape; fall back to date only
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
