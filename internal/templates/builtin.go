package templates

import (
	"sort"
	"sync"
)

const dailyTemplate = `
title: "Reporte diario {{date .Now}}"
description: Lecturas del día y resumen de las últimas mediciones.
variables:
  area:
    description: Area or room the readings come from
    optional: true
sections:
  - id: readings
    title: "Lecturas de hoy{{if hasValue (.Var \"area\")}} ({{.Var \"area\"}}){{end}}"
    body: |
      {{- $today := .Today -}}
      {{- if $today -}}
      | Hora | Jornada | Temperatura | Humedad | Persona |
      |---|---|---|---|---|
      {{- range $today}}
      | {{.Time}} | {{.Shift}} | {{temp .Temperature}} | {{hum .Humidity}} | {{.Person}} |
      {{- end}}
      {{- else -}}
      Sin lecturas registradas hoy.
      {{- end}}
  - id: summary
    title: Resumen
    body: |
      {{- if .HasSummary -}}
      - Temperatura actual **{{temp .Summary.Temperature.Current}}**, promedio {{temp .Summary.Temperature.Avg}} ({{.Summary.Temperature.Analysis}})
      - Máxima {{temp .Summary.Temperature.Max}} en {{.Summary.Temperature.MaxLabel}}, mínima {{temp .Summary.Temperature.Min}} en {{.Summary.Temperature.MinLabel}}
      - Humedad actual **{{hum .Summary.Humidity.Current}}**, promedio {{hum .Summary.Humidity.Avg}} ({{.Summary.Humidity.Analysis}})
      - Máxima {{hum .Summary.Humidity.Max}} en {{.Summary.Humidity.MaxLabel}}, mínima {{hum .Summary.Humidity.Min}} en {{.Summary.Humidity.MinLabel}}
      {{- else -}}
      Sin datos.
      {{- end}}
`

const monthlyTemplate = `
title: "Reporte mensual {{.Progress.Month}} {{.Progress.Year}}"
description: Avance del mes y promedios del período.
sections:
  - id: progress
    title: Avance
    body: |
      - Registros: {{.Progress.Records}} de {{.Progress.Required}} ({{fixed 0 .Progress.Percent}}%)
      - Días restantes: {{.Progress.DaysRemaining}}
      {{- if .Progress.Complete}}
      - Meta mensual cumplida.
      {{- end}}
  - id: averages
    title: Promedios
    body: |
      {{- if .Dashboard -}}
      | | Temperatura | Humedad |
      |---|---|---|
      | Período | {{temp .Dashboard.TempAvg}} | {{hum .Dashboard.HumidityAvg}} |
      | Año | {{temp .Dashboard.YearTempAvg}} | {{hum .Dashboard.YearHumidityAvg}} |
      | Análisis | {{.Dashboard.TempAnalysis}} | {{.Dashboard.HumidityAnalysis}} |

      Total de registros: {{.Dashboard.TotalRecords}}. Último registro: {{.Dashboard.LastRecord}}.
      {{- else if .HasSummary -}}
      Últimas {{.Summary.Count}} lecturas: {{temp .Summary.Temperature.Avg}} ({{.Summary.Temperature.Analysis}}), {{hum .Summary.Humidity.Avg}} ({{.Summary.Humidity.Analysis}}).
      {{- else -}}
      Sin datos.
      {{- end}}
`

var (
	builtinOnce sync.Once
	builtinList []*Template
)

// builtins returns the templates shipped with the binary, parsed once.
func builtins() []*Template {
	builtinOnce.Do(func() {
		sources := map[string]string{
			"daily":   dailyTemplate,
			"monthly": monthlyTemplate,
		}
		for id, src := range sources {
			tmpl, err := parseTemplate([]byte(src), ".yaml")
			if err != nil {
				panic("built-in template " + id + ": " + err.Error())
			}
			tmpl.ID = id
			tmpl.Source = "builtin"
			builtinList = append(builtinList, tmpl)
		}
		sort.Slice(builtinList, func(i, j int) bool { return builtinList[i].ID < builtinList[j].ID })
	})
	return builtinList
}
