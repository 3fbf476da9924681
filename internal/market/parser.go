package market

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"witswatch/internal/table"
)

// Field counts per record shape. Price and infeasible payloads lead with the
// node identifier.
const (
	priceFields      = 9
	infeasibleFields = 7
	reserveFields    = 21
)

// DecodeError reports a payload that was fetched but could not be parsed.
type DecodeError struct {
	Kind Kind
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode %s line %d: %v", e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newReader(data []byte, fields int) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = fields
	r.TrimLeadingSpace = true
	return r
}

// readAll reads every record, mapping csv errors to a DecodeError.
func readAll(kind Kind, data []byte, fields int) ([][]string, error) {
	r := newReader(data, fields)
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return nil, &DecodeError{Kind: kind, Line: line, Err: err}
		}
		records = append(records, rec)
	}
}

// ParsePrices parses a price payload. An empty payload yields an empty
// PriceFile and no error.
func ParsePrices(data []byte, loc *time.Location) (PriceFile, error) {
	rows, err := readAll(KindPrice, data, priceFields)
	if err != nil || len(rows) == 0 {
		return PriceFile{}, err
	}

	first := rows[0]
	ts, err := parseDateTime(first[1], first[3], loc)
	if err != nil {
		return PriceFile{}, &DecodeError{Kind: KindPrice, Line: 1, Err: err}
	}
	tp, err := parseTradingPeriod(first[2])
	if err != nil {
		return PriceFile{}, &DecodeError{Kind: KindPrice, Line: 1, Err: err}
	}

	file := PriceFile{Key: table.NewKey(ts, tp), Records: make([]NodePrice, 0, len(rows))}
	for i, row := range rows {
		price, err := decimal.NewFromString(strings.TrimSpace(row[4]))
		if err != nil {
			return PriceFile{}, &DecodeError{Kind: KindPrice, Line: i + 1, Err: fmt.Errorf("price %q: %w", row[4], err)}
		}
		file.Records = append(file.Records, NodePrice{
			Node:   strings.TrimSpace(row[0]),
			Price:  price,
			Island: strings.TrimSpace(row[5]),
			Region: strings.TrimSpace(row[6]),
		})
	}
	return file, nil
}

// ParseInfeasible parses the infeasible node list. An empty payload yields
// an empty set.
func ParseInfeasible(data []byte) (InfeasibleSet, error) {
	rows, err := readAll(KindInfeasible, data, infeasibleFields)
	if err != nil {
		return nil, err
	}
	set := make(InfeasibleSet, len(rows))
	for _, row := range rows {
		node := strings.TrimSpace(row[0])
		if node == "" {
			continue
		}
		set[node] = struct{}{}
	}
	return set, nil
}

// ParseReserve parses the reserve summary row. A nil summary means the
// payload was empty.
func ParseReserve(data []byte, loc *time.Location) (*ReserveSummary, error) {
	rows, err := readAll(KindReserve, data, reserveFields)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	row := rows[0]

	var rs ReserveSummary
	numeric := []*float64{
		&rs.RampConstrained, &rs.BranchConstrained, &rs.GroupConstrained,
		&rs.NIFIRMW, &rs.NIFIRPrice, &rs.NISIRMW, &rs.NISIRPrice,
		&rs.SIFIRMW, &rs.SIFIRPrice, &rs.SISIRMW, &rs.SISIRPrice,
		&rs.NIFIRDeficit, &rs.NISIRDeficit, &rs.SIFIRDeficit, &rs.SISIRDeficit,
		&rs.NIEnergyDeficit, &rs.SIEnergyDeficit,
		&rs.HVDCNorthMW, &rs.HVDCSouthMW,
	}
	for i, dst := range numeric {
		v, err := decimal.NewFromString(strings.TrimSpace(row[i]))
		if err != nil {
			return nil, &DecodeError{Kind: KindReserve, Line: 1, Err: fmt.Errorf("field %d %q: %w", i+1, row[i], err)}
		}
		*dst = v.InexactFloat64()
	}

	tp, err := parseTradingPeriod(row[19])
	if err != nil {
		return nil, &DecodeError{Kind: KindReserve, Line: 1, Err: err}
	}
	rs.TradingPeriod = tp

	date, clock, ok := strings.Cut(strings.TrimSpace(row[20]), " ")
	if !ok {
		return nil, &DecodeError{Kind: KindReserve, Line: 1, Err: fmt.Errorf("datetime %q: missing time", row[20])}
	}
	ts, err := parseDateTime(date, clock, loc)
	if err != nil {
		return nil, &DecodeError{Kind: KindReserve, Line: 1, Err: err}
	}
	rs.Time = ts
	return &rs, nil
}

// parseDateTime reads a D/M/Y date and an H:M time.
func parseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	dparts := strings.Split(strings.TrimSpace(date), "/")
	if len(dparts) != 3 {
		return time.Time{}, fmt.Errorf("date %q: want D/M/Y", date)
	}
	cparts := strings.Split(strings.TrimSpace(clock), ":")
	if len(cparts) < 2 {
		return time.Time{}, fmt.Errorf("time %q: want H:M", clock)
	}

	nums := make([]int, 0, 5)
	for _, s := range append(dparts, cparts[0], cparts[1]) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q time %q: %w", date, clock, err)
		}
		nums = append(nums, n)
	}
	day, month, year, hour, minute := nums[0], nums[1], nums[2], nums[3], nums[4]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || hour < 0 || minute < 0 {
		return time.Time{}, fmt.Errorf("date %q time %q: out of range", date, clock)
	}
	if loc == nil {
		loc = time.UTC
	}
	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if ts.Day() != day || ts.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("date %q: no such day", date)
	}
	return ts, nil
}

func parseTradingPeriod(raw string) (int, error) {
	tp, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("trading period %q: %w", raw, err)
	}
	if tp < 1 {
		return 0, fmt.Errorf("trading period %d out of range", tp)
	}
	return tp, nil
}
