package models

// TimestampLayout is the fixed textual format of Order.Timestamp. Lexicographic
// order on strings in this layout matches chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout matches the first 10 characters of a timestamp.
const DateLayout = "2006-01-02"

// Placeholder is shown wherever a derived value cannot be computed.
const Placeholder = "N/A"

type Order struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Order     string `json:"order"`
	Notes     string `json:"notes"`
	Timestamp string `json:"timestamp"`
	Week      string `json:"week,omitempty"` // only set on aggregated copies
}

// Date returns the date portion of the timestamp.
func (o Order) Date() string {
	r := []rune(o.Timestamp)
	if len(r) > len(DateLayout) {
		r = r[:len(DateLayout)]
	}
	return string(r)
}

type UserSummary struct {
	DisplayName string  `json:"display_name"`
	TotalOrders int     `json:"total_orders"`
	Orders      []Order `json:"orders"`
	MostCommon  string  `json:"most_common"`
	LastOrdered string  `json:"last_ordered"`
}
