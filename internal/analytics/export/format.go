package export

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// groupSep and decimalSep are the pt-BR separators, read once from the locale.
var groupSep, decimalSep = localeSeparators()

func localeSeparators() (string, string) {
	sample := []rune(ptBR.Sprint(number.Decimal(1000.5, number.Scale(1))))
	if len(sample) != 7 {
		return ".", ","
	}
	return string(sample[1]), string(sample[5])
}

// plain renders a value for machine consumption: dot separator, two places.
func plain(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// brl renders a currency amount the way printed reports show it, e.g. "R$ 1.234,56".
func brl(d decimal.Decimal) string {
	return "R$ " + grouped(d, 2)
}

// grouped renders d with pt-BR grouping and the given number of places.
func grouped(d decimal.Decimal, places int) string {
	fixed := d.StringFixed(int32(places))
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(groupSep)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString(decimalSep)
		b.WriteString(frac)
	}
	return b.String()
}

// percent renders a 0-100 figure as "66,67%".
func percent(d decimal.Decimal) string {
	return grouped(d, 2) + "%"
}

func dateBR(raw string) string {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw
	}
	return t.Format("02/01/2006")
}
