package main

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/Travis-Britz/ddns/v2"
)

func printSummary(w io.Writer, rep ddns.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "Provider", "Address", "Result", "Error"})
	table.SetAutoWrapText(false)
	for _, o := range rep.Outcomes {
		addr, errText := "", ""
		if o.Addr.IsValid() {
			addr = o.Addr.String()
		}
		if o.Err != nil {
			errText = o.Err.Error()
		}
		table.Append([]string{o.FQDN, string(o.Type), o.Provider, addr, string(o.Action), errText})
	}
	table.Render()
}
