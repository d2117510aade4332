package remote

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/taxilian/envlog/internal/model"
)

// Dashboard fetches the endpoint's aggregates for the active and yearly sheets.
func (c *Client) Dashboard(ctx context.Context) (model.Dashboard, error) {
	env, err := c.call(ctx, "generateDashboard", nil)
	if err != nil {
		return model.Dashboard{}, err
	}
	var d model.Dashboard
	if err := decodeData("generateDashboard", env, &d); err != nil {
		return model.Dashboard{}, err
	}
	return d, nil
}

// YearSheets lists the yearly archive sheets.
func (c *Client) YearSheets(ctx context.Context) ([]model.YearSheet, error) {
	env, err := c.call(ctx, "getYearSheets", nil)
	if err != nil {
		return nil, err
	}
	var sheets []model.YearSheet
	if err := decodeData("getYearSheets", env, &sheets); err != nil {
		return nil, err
	}
	return sheets, nil
}

// CreateYearSheet creates the archive sheet for year and returns the
// endpoint's message.
func (c *Client) CreateYearSheet(ctx context.Context, year int) (string, error) {
	env, err := c.call(ctx, "createYearSheet", url.Values{"year": {strconv.Itoa(year)}})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Migrate moves month's readings from the active sheet into year's archive.
func (c *Client) Migrate(ctx context.Context, year int, month string) (string, error) {
	env, err := c.call(ctx, "migrateData", monthParams(year, month))
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// RestoreMigration copies an archived month back to the active sheet and
// reports how many records came back.
func (c *Client) RestoreMigration(ctx context.Context, year int, month string) (int, string, error) {
	env, err := c.call(ctx, "restoreMigration", monthParams(year, month))
	if err != nil {
		return 0, "", err
	}
	return env.RecordsRestored, env.Message, nil
}

// HistoricalData returns the archived readings for year.
func (c *Client) HistoricalData(ctx context.Context, year int) ([]model.ArchivedRecord, error) {
	env, err := c.call(ctx, "getHistoricalData", url.Values{"year": {strconv.Itoa(year)}})
	if err != nil {
		return nil, err
	}
	var records []model.ArchivedRecord
	if err := decodeData("getHistoricalData", env, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// AllHistoricalData returns every archive keyed by year, plus the years in
// ascending order.
func (c *Client) AllHistoricalData(ctx context.Context) ([]string, map[string][]model.ArchivedRecord, error) {
	env, err := c.call(ctx, "getAllHistoricalData", nil)
	if err != nil {
		return nil, nil, err
	}
	byYear := map[string][]model.ArchivedRecord{}
	if err := decodeData("getAllHistoricalData", env, &byYear); err != nil {
		return nil, nil, err
	}
	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)
	return years, byYear, nil
}

func monthParams(year int, month string) url.Values {
	return url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {month},
	}
}
