package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// apiMarket is the Gamma API market shape. Several list-valued fields arrive
// as JSON-encoded strings rather than arrays, so they need a second decode.
type apiMarket struct {
	ID            string `json:"id"`
	Slug          string `json:"slug"`
	Question      string `json:"question"`
	Outcomes      string `json:"outcomes"`       // e.g. `["Up","Down"]`
	OutcomePrices string `json:"outcomePrices"`  // e.g. `["0.52","0.49"]`
	ClobTokenIDs  string `json:"clobTokenIds"`   // e.g. `["123...","456..."]`
	EndDate       string `json:"endDate"`        // RFC 3339
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	AcceptingOrders bool `json:"acceptingOrders"`
}

// sides returns the Up and Down index into the market's outcome arrays.
func (m *apiMarket) sides() (up, down int, err error) {
	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return 0, 0, fmt.Errorf("decode outcomes: %w", err)
	}
	up, down = -1, -1
	for i, o := range outcomes {
		switch o {
		case "Up":
			up = i
		case "Down":
			down = i
		}
	}
	if up < 0 || down < 0 {
		return 0, 0, fmt.Errorf("market %s is not an Up/Down pair: %v", m.ID, outcomes)
	}
	return up, down, nil
}

func (m *apiMarket) prices() ([]float64, error) {
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return nil, fmt.Errorf("decode outcomePrices: %w", err)
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", s, err)
		}
		out[i] = p
	}
	return out, nil
}

func (m *apiMarket) tokenIDs() ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil, fmt.Errorf("decode clobTokenIds: %w", err)
	}
	return ids, nil
}

func (m *apiMarket) endTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse endDate %q: %w", m.EndDate, err)
	}
	return t, nil
}

// apiOrderResult is the CLOB order placement response.
type apiOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}
