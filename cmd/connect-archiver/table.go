package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/alanbriolat/connect-archiver/reconstruct"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderOutcomes(outcomes []reconstruct.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		output := ""
		if o.Job != nil {
			output = o.Job.Destination
		}
		rows = append(rows, []string{strconv.Itoa(o.Index), o.Request.URL, o.Status(), output})
	}
	return renderTable([]string{"#", "URL", "Result", "Output"}, rows, []columnAlignment{alignRight})
}

func renderHistory(records []reconstruct.JobRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		finished := ""
		if !r.Finished.IsZero() {
			finished = r.Finished.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{r.URL, r.RecordingID, string(r.State), r.Destination, finished})
	}
	return renderTable([]string{"URL", "Recording", "State", "Output", "Finished"}, rows, nil)
}
