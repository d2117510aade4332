package remote

import (
	"context"
	"net/http"
	"net/url"
	"testing"
)

func TestDashboard(t *testing.T) {
	c, fake := setupClient(t, func(q url.Values) (int, any) {
		return http.StatusOK, `{"success":true,"data":{"tempAvg":21.3,"tempSum":511.2,"tempAnalysis":"Temperatura Normal","humidityAvg":62,"humiditySum":1488,"humidityAnalysis":"Humedad Alta","yearTempAvg":20.9,"yearHumidityAvg":58,"totalRecords":24,"lastRecord":"2025-03-09"}}`
	})
	d, err := c.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if fake.last().Get("action") != "generateDashboard" {
		t.Errorf("action = %q", fake.last().Get("action"))
	}
	if d.TempAvg != 21.3 || d.TotalRecords != 24 || d.HumidityAnalysis != "Humedad Alta" {
		t.Errorf("unexpected dashboard: %+v", d)
	}
}

func TestYearSheets(t *testing.T) {
	c, _ := setupClient(t, func(q url.Values) (int, any) {
		return http.StatusOK, `{"success":true,"data":[{"year":2024,"active":false,"months":12,"records":700,"lastUpdate":"2024-12-31"},{"year":"2025","active":true,"months":3,"records":150}]}`
	})
	sheets, err := c.YearSheets(context.Background())
	if err != nil {
		t.Fatalf("YearSheets: %v", err)
	}
	if len(sheets) != 2 || sheets[0].Year.String() != "2024" || sheets[1].Year.String() != "2025" || !sheets[1].Active {
		t.Errorf("unexpected sheets: %+v", sheets)
	}
}

func TestCreateYearSheet(t *testing.T) {
	c, fake := setupClient(t, func(q url.Values) (int, any) {
		return http.StatusOK, map[string]any{"success": true, "message": "Hoja 2026 creada"}
	})
	msg, err := c.CreateYearSheet(context.Background(), 2026)
	if err != nil {
		t.Fatalf("CreateYearSheet: %v", err)
	}
	if fake.last().Get("year") != "2026" || msg != "Hoja 2026 creada" {
		t.Errorf("query %v, message %q", fake.last(), msg)
	}
}

func TestMigrateAndRestore(t *testing.T) {
	c, fake := setupClient(t, func(q url.Values) (int, any) {
		if q.Get("action") == "restoreMigration" {
			return http.StatusOK, map[string]any{"success": true, "recordsRestored": 58, "message": "ok"}
		}
		return http.StatusOK, map[string]any{"success": true, "message": "Migrados 58 registros"}
	})

	msg, err := c.Migrate(context.Background(), 2025, "Marzo")
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	q := fake.last()
	if q.Get("action") != "migrateData" || q.Get("year") != "2025" || q.Get("month") != "Marzo" {
		t.Errorf("unexpected migrate query: %v", q)
	}
	if msg != "Migrados 58 registros" {
		t.Errorf("message = %q", msg)
	}

	n, _, err := c.RestoreMigration(context.Background(), 2025, "Marzo")
	if err != nil {
		t.Fatalf("RestoreMigration: %v", err)
	}
	if n != 58 {
		t.Errorf("restored = %d, want 58", n)
	}
}

func TestHistoricalData(t *testing.T) {
	c, fake := setupClient(t, func(q url.Values) (int, any) {
		return http.StatusOK, `{"success":true,"data":[{"id":1,"fecha":"2024-01-02","hora":"08:00","jornada":"MAÑANA","dia":2,"temperatura":19,"humedad":50,"persona":"Ana","mes":"Enero"}]}`
	})
	records, err := c.HistoricalData(context.Background(), 2024)
	if err != nil {
		t.Fatalf("HistoricalData: %v", err)
	}
	if fake.last().Get("year") != "2024" {
		t.Errorf("year = %q", fake.last().Get("year"))
	}
	if len(records) != 1 || records[0].Month != "Enero" || records[0].Temperature != 19 {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestAllHistoricalData(t *testing.T) {
	c, _ := setupClient(t, func(q url.Values) (int, any) {
		return http.StatusOK, `{"success":true,"data":{"2025":[{"id":3,"mes":"Enero"}],"2024":[{"id":1,"mes":"Enero"},{"id":2,"mes":"Febrero"}]}}`
	})
	years, byYear, err := c.AllHistoricalData(context.Background())
	if err != nil {
		t.Fatalf("AllHistoricalData: %v", err)
	}
	if len(years) != 2 || years[0] != "2024" || years[1] != "2025" {
		t.Errorf("years = %v", years)
	}
	if len(byYear["2024"]) != 2 {
		t.Errorf("2024 records = %d, want 2", len(byYear["2024"]))
	}
}
