package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/taxilian/envlog/internal/model"
)

type envelope struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	Data            any    `json:"data,omitempty"`
	RecordsRestored int    `json:"recordsRestored,omitempty"`
}

// ServeHTTP answers the endpoint's GET protocol (?action=...) from the
// sheet, so a remote.Client can be pointed at an httptest.Server.
// Failures are reported the way the script does: HTTP 200 with
// success=false.
func (s *Sheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()
	var (
		env envelope
		err error
	)
	switch action := q.Get("action"); action {
	case "getData":
		var recs []model.Record
		recs, err = s.List(ctx)
		env.Data = recs
	case "createData":
		var rec model.Record
		rec, err = s.Create(ctx, recordFromQuery(q))
		env.Data = rec
	case "updateData":
		var rec model.Record
		rec, err = s.Update(ctx, recordFromQuery(q))
		env.Data = rec
	case "deleteData":
		id, _ := strconv.Atoi(q.Get("id"))
		err = s.Delete(ctx, id)
	case "generateDashboard":
		var d model.Dashboard
		d, err = s.Dashboard(ctx)
		env.Data = d
	case "getYearSheets":
		env.Data, err = s.yearSheets()
	case "createYearSheet":
		env.Message, err = s.createYearSheet(q.Get("year"))
	case "getHistoricalData":
		env.Data, err = s.historical(q.Get("year"))
	case "migrateData":
		env.Message, err = s.migrate(q.Get("year"), q.Get("month"))
	case "restoreMigration":
		env.RecordsRestored, env.Message, err = s.restore(q.Get("year"), q.Get("month"))
	default:
		err = fmt.Errorf("Acción no válida: %s", action)
	}

	if err != nil {
		env = envelope{Message: err.Error()}
	} else {
		env.Success = true
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

// SetArchive replaces the archived readings of year.
func (s *Sheet) SetArchive(year int, recs []model.ArchivedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive[year] = append([]model.ArchivedRecord(nil), recs...)
}

// Archive returns the archived readings of year and whether its sheet exists.
func (s *Sheet) Archive(year int) ([]model.ArchivedRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, ok := s.archive[year]
	return append([]model.ArchivedRecord(nil), recs...), ok
}

func recordFromQuery(q url.Values) model.Record {
	id, _ := strconv.Atoi(q.Get("id"))
	day, _ := strconv.Atoi(q.Get("dia"))
	temp, _ := strconv.ParseFloat(q.Get("temperatura"), 64)
	hum, _ := strconv.ParseFloat(q.Get("humedad"), 64)
	return model.Record{
		ID:          id,
		Date:        q.Get("fecha"),
		Time:        q.Get("hora"),
		Shift:       model.Shift(q.Get("jornada")),
		Day:         day,
		Temperature: temp,
		Humidity:    hum,
		Person:      q.Get("persona"),
		Notes:       q.Get("observaciones"),
	}
}

func (s *Sheet) yearSheets() ([]model.YearSheet, error) {
	if err := s.begin("yearSheets", false); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	defer s.mu.Unlock()
	years := make([]int, 0, len(s.archive))
	for y := range s.archive {
		years = append(years, y)
	}
	sort.Ints(years)
	sheets := make([]model.YearSheet, 0, len(years))
	for _, y := range years {
		months := map[string]bool{}
		for _, r := range s.archive[y] {
			months[r.Month] = true
		}
		sheets = append(sheets, model.YearSheet{
			Year:    json.Number(strconv.Itoa(y)),
			Months:  len(months),
			Records: len(s.archive[y]),
		})
	}
	return sheets, nil
}

func (s *Sheet) createYearSheet(yearParam string) (string, error) {
	year, err := strconv.Atoi(yearParam)
	if err != nil {
		return "", fmt.Errorf("Año inválido: %s", yearParam)
	}
	if err := s.begin(fmt.Sprintf("createYearSheet(%d)", year), true); err != nil {
		s.mu.Unlock()
		return "", err
	}
	defer s.mu.Unlock()
	if _, ok := s.archive[year]; ok {
		return "", fmt.Errorf("La hoja %d ya existe", year)
	}
	s.archive[year] = nil
	return fmt.Sprintf("Hoja %d creada", year), nil
}

func (s *Sheet) historical(yearParam string) ([]model.ArchivedRecord, error) {
	year, _ := strconv.Atoi(yearParam)
	if err := s.begin(fmt.Sprintf("historical(%d)", year), false); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	defer s.mu.Unlock()
	recs, ok := s.archive[year]
	if !ok {
		return nil, fmt.Errorf("No existe la hoja %d", year)
	}
	return append([]model.ArchivedRecord{}, recs...), nil
}

// migrate moves the active rows dated in month into year's archive.
func (s *Sheet) migrate(yearParam, month string) (string, error) {
	year, _ := strconv.Atoi(yearParam)
	if err := s.begin(fmt.Sprintf("migrate(%d,%s)", year, month), true); err != nil {
		s.mu.Unlock()
		return "", err
	}
	defer s.mu.Unlock()
	if _, ok := s.archive[year]; !ok {
		return "", fmt.Errorf("No existe la hoja %d", year)
	}
	n := 0
	for _, r := range s.sorted() {
		d := r.ParsedDate()
		if d.IsZero() || d.Year() != year || model.MonthName(d.Month()) != month {
			continue
		}
		s.archive[year] = append(s.archive[year], model.ArchivedRecord{Record: r, Month: month})
		delete(s.rows, r.ID)
		n++
	}
	if n == 0 {
		return "", fmt.Errorf("No hay datos de %s para migrar", month)
	}
	return fmt.Sprintf("%d registros migrados a %d", n, year), nil
}

// restore moves month's archived rows back to the active sheet.
func (s *Sheet) restore(yearParam, month string) (int, string, error) {
	year, _ := strconv.Atoi(yearParam)
	if err := s.begin(fmt.Sprintf("restore(%d,%s)", year, month), true); err != nil {
		s.mu.Unlock()
		return 0, "", err
	}
	defer s.mu.Unlock()
	recs, ok := s.archive[year]
	if !ok {
		return 0, "", fmt.Errorf("No existe la hoja %d", year)
	}
	var kept []model.ArchivedRecord
	n := 0
	for _, r := range recs {
		if r.Month != month {
			kept = append(kept, r)
			continue
		}
		rec := r.Record
		if _, taken := s.rows[rec.ID]; rec.ID == 0 || taken {
			s.nextID++
			rec.ID = s.nextID
		}
		if rec.ID > s.nextID {
			s.nextID = rec.ID
		}
		s.rows[rec.ID] = rec
		n++
	}
	s.archive[year] = kept
	return n, "Datos restaurados", nil
}
