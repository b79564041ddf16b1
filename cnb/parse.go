package cnb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"go-exchange-rate-updater"
)

// Reasons a record is dropped from a listing
const (
	ReasonMalformed     = "malformed"
	ReasonMissingField  = "missing_field"
	ReasonNonNumeric    = "non_numeric"
	ReasonInvalidAmount = "invalid_amount"
)

// SkipFunc is told about every record that is left out of the result
type SkipFunc func(reason, record string)

// Parser turns a response body into quotes.
// Only a listing that cannot be read as a whole is an error; bad records are reported to skip.
type Parser func(body []byte, skip SkipFunc) ([]updater.Quote, error)

// Format of the daily listing
type Format string

const (
	// FormatJSON the cnbapi JSON document
	FormatJSON Format = "json"
	// FormatText the pipe delimited daily.txt listing
	FormatText Format = "text"
	// FormatXML listings of <currency code="USD"><amount>1</amount><rate>22,5</rate></currency> elements
	FormatXML Format = "xml"
)

// ParseFormat validates a configured format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText, FormatXML:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown feed format %q", updater.ErrInvalidArgument, s)
	}
}

// Parser for the format, JSON for anything unknown
func (f Format) Parser() Parser {
	switch f {
	case FormatText:
		return ParseText
	case FormatXML:
		return ParseXML
	default:
		return ParseJSON
	}
}

// ParseJSON reads {"rates":[{"currencyCode":"USD","amount":1,"rate":22.5}, ...]}
func ParseJSON(body []byte, skip SkipFunc) ([]updater.Quote, error) {
	type Envelope struct {
		Rates []json.RawMessage `json:"rates"`
	}
	type Record struct {
		Code   *string         `json:"currencyCode"`
		Amount json.RawMessage `json:"amount"`
		Rate   json.RawMessage `json:"rate"`
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding json: %v", updater.ErrUpstreamFormat, err)
	}
	if envelope.Rates == nil {
		return nil, fmt.Errorf("%w: missing rates array", updater.ErrUpstreamFormat)
	}

	quotes := make([]updater.Quote, 0, len(envelope.Rates))
	for _, raw := range envelope.Rates {
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			skip(ReasonMalformed, string(raw))
			continue
		}
		var code string
		if record.Code != nil {
			code = *record.Code
		}
		quote, reason := newQuote(code, jsonScalar(record.Amount), jsonScalar(record.Rate))
		if reason != "" {
			skip(reason, string(raw))
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// jsonScalar the literal text of a number or string value, "" for null or absent
func jsonScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

// ParseText reads the daily.txt listing:
//
//	17.10.2025 #201
//	Country|Currency|Amount|Code|Rate
//	USA|dollar|1|USD|22,500
func ParseText(body []byte, skip SkipFunc) ([]updater.Quote, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))

	amountCol, codeCol, rateCol := -1, -1, -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.Contains(line, "|") {
			continue
		}
		for i, column := range strings.Split(line, "|") {
			switch strings.ToLower(strings.TrimSpace(column)) {
			case "amount":
				amountCol = i
			case "code":
				codeCol = i
			case "rate":
				rateCol = i
			}
		}
		break
	}
	if amountCol < 0 || codeCol < 0 || rateCol < 0 {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: reading listing: %v", updater.ErrUpstreamFormat, err)
		}
		return nil, fmt.Errorf("%w: missing header with amount, code and rate columns", updater.ErrUpstreamFormat)
	}
	width := max(amountCol, codeCol, rateCol) + 1

	var quotes []updater.Quote
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < width {
			skip(ReasonMalformed, line)
			continue
		}
		rate := strings.ReplaceAll(strings.TrimSpace(fields[rateCol]), ",", ".")
		quote, reason := newQuote(fields[codeCol], strings.TrimSpace(fields[amountCol]), rate)
		if reason != "" {
			skip(reason, line)
			continue
		}
		quotes = append(quotes, quote)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading listing: %v", updater.ErrUpstreamFormat, err)
	}
	return quotes, nil
}

// ParseXML reads every <currency> element of the document, wherever it is nested
func ParseXML(body []byte, skip SkipFunc) ([]updater.Quote, error) {
	type Currency struct {
		Code   string `xml:"code,attr"`
		Amount string `xml:"amount"`
		Rate   string `xml:"rate"`
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	var quotes []updater.Quote
	root := false
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decoding xml: %v", updater.ErrUpstreamFormat, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		root = true
		if start.Name.Local != "currency" {
			continue
		}

		var element Currency
		if err := decoder.DecodeElement(&element, &start); err != nil {
			return nil, fmt.Errorf("%w: decoding xml: %v", updater.ErrUpstreamFormat, err)
		}
		record := fmt.Sprintf("code=%q amount=%q rate=%q", element.Code, element.Amount, element.Rate)
		rate := strings.ReplaceAll(strings.TrimSpace(element.Rate), ",", ".")
		quote, reason := newQuote(element.Code, strings.TrimSpace(element.Amount), rate)
		if reason != "" {
			skip(reason, record)
			continue
		}
		quotes = append(quotes, quote)
	}
	if !root {
		return nil, fmt.Errorf("%w: empty xml document", updater.ErrUpstreamFormat)
	}
	return quotes, nil
}

// newQuote validates one record, returning the skip reason when it is unusable
func newQuote(code, amount, rate string) (updater.Quote, string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || amount == "" || rate == "" {
		return updater.Quote{}, ReasonMissingField
	}

	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return updater.Quote{}, ReasonNonNumeric
	}
	if n <= 0 {
		return updater.Quote{}, ReasonInvalidAmount
	}

	value, err := decimal.NewFromString(rate)
	if err != nil {
		return updater.Quote{}, ReasonNonNumeric
	}

	return updater.Quote{Code: code, Amount: n, Rate: value}, ""
}
