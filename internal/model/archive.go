package model

import "encoding/json"

// YearSheet summarizes one archive sheet on the endpoint.
type YearSheet struct {
	Year       json.Number `json:"year"`
	Active     bool        `json:"active"`
	Months     int         `json:"months"`
	Records    int         `json:"records"`
	LastUpdate string      `json:"lastUpdate"`
}

// ArchivedRecord is a reading stored in a year sheet under its month.
type ArchivedRecord struct {
	Record
	Month string `json:"mes"`
}

// UnmarshalJSON decodes the embedded record with its loose typing and the month.
func (a *ArchivedRecord) UnmarshalJSON(b []byte) error {
	if err := a.Record.UnmarshalJSON(b); err != nil {
		return err
	}
	var m struct {
		Month flexString `json:"mes"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	a.Month = string(m.Month)
	return nil
}

// GroupByMonth groups archived readings by month, keeping first-seen order.
func GroupByMonth(records []ArchivedRecord) ([]string, map[string][]ArchivedRecord) {
	var order []string
	groups := make(map[string][]ArchivedRecord)
	for _, r := range records {
		if _, ok := groups[r.Month]; !ok {
			order = append(order, r.Month)
		}
		groups[r.Month] = append(groups[r.Month], r)
	}
	return order, groups
}
