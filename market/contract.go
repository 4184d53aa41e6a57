package market

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Multiplier is the number of shares one equity option contract controls.
const Multiplier = 100

// DateLayout is the calendar date format used for expiries in data files
// and records.
const DateLayout = "2006-01-02"

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ParseOptionType accepts "call", "put", "c", "p" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", Errorf(KindInvalidInput, "unknown option type %q", s)
}

func (t OptionType) code() byte {
	if t == Put {
		return 'P'
	}
	return 'C'
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return "", Errorf(KindInvalidOrder, "invalid side %q, use buy or sell", s)
}

// Sign is +1 for buys and -1 for sells.
func (s Side) Sign() int {
	if s == Sell {
		return -1
	}
	return 1
}

// Contract identifies one listed option.
//
// The canonical text form is the OCC symbol
//
//	{ROOT}{YYMMDD}{C|P}{strike*1000 as 8 digits}
//
// e.g. SPY240119C00475000.
type Contract struct {
	Underlying string
	Expiry     time.Time // date only, UTC midnight
	Type       OptionType
	Strike     float64
}

const (
	occSuffixLen = 15 // YYMMDD + C|P + 8 strike digits
	maxRootLen   = 6
	maxStrike    = 99999.999
)

// NewContract validates the parts and normalises the expiry to a date.
func NewContract(underlying string, expiry time.Time, typ OptionType, strike float64) (Contract, error) {
	c := Contract{
		Underlying: strings.ToUpper(strings.TrimSpace(underlying)),
		Expiry:     DateOf(expiry),
		Type:       typ,
		Strike:     strike,
	}
	if err := c.validate(); err != nil {
		return Contract{}, err
	}
	return c, nil
}

func (c Contract) validate() error {
	if !validRoot(c.Underlying) {
		return Errorf(KindInvalidContractSymbol, "bad underlying %q", c.Underlying)
	}
	if c.Type != Call && c.Type != Put {
		return Errorf(KindInvalidContractSymbol, "bad option type %q", c.Type)
	}
	if !(c.Strike > 0) || c.Strike > maxStrike {
		return Errorf(KindInvalidContractSymbol, "strike %v out of range", c.Strike)
	}
	// Two digit years only round-trip inside the window time.Parse maps them to.
	if y := c.Expiry.Year(); y < 1969 || y > 2068 {
		return Errorf(KindInvalidContractSymbol, "expiry %s outside OCC year range", c.Expiry.Format(DateLayout))
	}
	return nil
}

func validRoot(s string) bool {
	if len(s) == 0 || len(s) > maxRootLen {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		ch := s[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}
	return true
}

// ParseSymbol decodes an OCC symbol. Parsing is strict: Symbol() of the
// result reproduces s exactly.
func ParseSymbol(s string) (Contract, error) {
	bad := func(why string) (Contract, error) {
		return Contract{}, (&Error{Kind: KindInvalidContractSymbol, Msg: why}).WithContract(s)
	}

	if len(s) <= occSuffixLen {
		return bad("too short")
	}
	root := s[:len(s)-occSuffixLen]
	rest := s[len(s)-occSuffixLen:]

	if !validRoot(root) {
		return bad(fmt.Sprintf("bad root %q", root))
	}

	exp, err := time.Parse("060102", rest[:6])
	if err != nil {
		return bad(fmt.Sprintf("bad expiry %q", rest[:6]))
	}

	var typ OptionType
	switch rest[6] {
	case 'C':
		typ = Call
	case 'P':
		typ = Put
	default:
		return bad(fmt.Sprintf("bad option type %q", rest[6:7]))
	}

	digits := rest[7:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return bad(fmt.Sprintf("bad strike %q", digits))
		}
	}
	milli, _ := strconv.ParseInt(digits, 10, 64)
	if milli == 0 {
		return bad("zero strike")
	}

	return Contract{
		Underlying: root,
		Expiry:     exp,
		Type:       typ,
		Strike:     float64(milli) / 1000,
	}, nil
}

// Symbol formats the canonical OCC symbol.
func (c Contract) Symbol() string {
	milli := int64(math.Round(c.Strike * 1000))
	return fmt.Sprintf("%s%s%c%08d", c.Underlying, c.Expiry.Format("060102"), c.Type.code(), milli)
}

func (c Contract) String() string { return c.Symbol() }

// Intrinsic is the exercise value per share at the given underlying price.
func (c Contract) Intrinsic(spot float64) float64 {
	if c.Type == Call {
		return math.Max(spot-c.Strike, 0)
	}
	return math.Max(c.Strike-spot, 0)
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SessionClose is the regular session close on date d (16:00 wall clock).
func SessionClose(d time.Time) time.Time {
	return DateOf(d).Add(16 * time.Hour)
}

// YearsToExpiry is the time from now until the expiry session close as a
// fraction of a 365 day year, floored at zero.
func YearsToExpiry(now, expiry time.Time) float64 {
	dt := SessionClose(expiry).Sub(now)
	if dt <= 0 {
		return 0
	}
	return dt.Hours() / (24 * 365)
}
