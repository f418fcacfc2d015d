package bid

import "strings"

type Status string

const (
	StatusBidding Status = "입찰"
	StatusOpened  Status = "개찰"
	StatusClosed  Status = "마감"
	StatusUnknown Status = "알 수 없음"
)

// ParseStatus normalizes scraped status text. Anything unrecognized maps to
// StatusUnknown rather than failing, since list pages vary by notice type.
func ParseStatus(s string) Status {
	switch Status(strings.TrimSpace(s)) {
	case StatusBidding, StatusOpened, StatusClosed:
		return Status(strings.TrimSpace(s))
	}
	return StatusUnknown
}

// Notice is one bid announcement row. Row numbers shown in the dashboard are
// positional within the current result set, so there is no index field here.
type Notice struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Number      string   `json:"number,omitempty"`
	Agency      string   `json:"agency"`
	Date        string   `json:"date"`
	EndDate     string   `json:"end_date"`
	Status      Status   `json:"status"`
	Details     *Details `json:"details,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	DetailURL   string   `json:"detail_url,omitempty"`
}

// Details holds the fields scraped from a notice's detail page.
type Details struct {
	ContractMethod   string `json:"contract_method,omitempty"`
	EstimatedPrice   string `json:"estimated_price,omitempty"`
	Qualification    string `json:"qualification,omitempty"`
	BidType          string `json:"bid_type,omitempty"`
	ContractPeriod   string `json:"contract_period,omitempty"`
	DeliveryLocation string `json:"delivery_location,omitempty"`
	Notice           string `json:"notice,omitempty"`
}

// Key identifies a notice well enough to dedupe across keyword searches.
// Notice numbers repeat across amendment rounds, so the title joins in.
func (n *Notice) Key() string {
	if n.Number != "" {
		return n.Number + "|" + n.Title
	}
	return n.Title + "|" + n.Agency
}
