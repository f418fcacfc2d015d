package server

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/EnzoMH/cradcrawl/internal/bid"
)

// utf8BOM makes Excel open the CSV as UTF-8; without it Korean text comes
// up garbled.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"번호", "공고명", "공고번호", "공고기관", "공고일", "마감일", "상태",
	"계약방식", "추정가격", "참가자격", "입찰방식", "계약기간", "납품장소", "상세URL",
}

// writeCSV flattens the result set into the download sheet. Row numbers are
// positions in the current set, not stable ids.
func writeCSV(w io.Writer, results []bid.Notice) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for i, n := range results {
		det := n.Details
		if det == nil {
			det = &bid.Details{}
		}
		row := []string{
			strconv.Itoa(i + 1),
			n.Title,
			n.Number,
			n.Agency,
			n.Date,
			n.EndDate,
			string(n.Status),
			det.ContractMethod,
			det.EstimatedPrice,
			det.Qualification,
			det.BidType,
			det.ContractPeriod,
			det.DeliveryLocation,
			n.DetailURL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
