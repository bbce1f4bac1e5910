package extraction

import (
	"strconv"
	"strings"

	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

type tableState int

const (
	scanning tableState = iota
	inTable
	done
)

// ParseLineItems finds the line-item table in rawText and returns its rows.
// The table starts after a header naming quantity, unit price and amount and ends at the
// first subtotal or total line. Rows whose first token is not an integer continue the
// previous description. It returns an empty slice when no header is found.
func ParseLineItems(rawText string) []invoice.LineItem {
	items := []invoice.LineItem{}
	var current *invoice.LineItem

	flush := func() {
		if current != nil {
			current.Position = len(items)
			items = append(items, *current)
			current = nil
		}
	}

	state := scanning
	for _, line := range strings.Split(rawText, "\n") {
		if state == done {
			break
		}
		lower := strings.ToLower(line)

		switch state {
		case scanning:
			if isLineItemHeader(lower) {
				state = inTable
			}
		case inTable:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.Contains(lower, "subtotal") || strings.Contains(lower, "total") {
				state = done
				continue
			}
			tokens := strings.Fields(line)
			if len(tokens) < 3 {
				continue
			}
			if qty, err := strconv.Atoi(tokens[0]); err == nil && qty >= 0 {
				flush()
				current = &invoice.LineItem{
					Quantity:    qty,
					Amount:      parseStrippedDecimal(tokens[len(tokens)-1]),
					UnitPrice:   parseStrippedDecimal(tokens[len(tokens)-2]),
					Description: strings.Join(tokens[1:len(tokens)-2], " "),
				}
			} else if current != nil {
				current.Description = strings.TrimSpace(current.Description + " " + strings.Join(tokens, " "))
			}
		}
	}
	flush()

	return items
}

func isLineItemHeader(lower string) bool {
	return strings.Contains(lower, "quantity") &&
		strings.Contains(lower, "unit price") &&
		strings.Contains(lower, "amount")
}

// parseStrippedDecimal keeps digits and the decimal point; anything unparsable is zero
func parseStrippedDecimal(token string) decimal.Decimal {
	var b strings.Builder
	for _, r := range token {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return v
}
