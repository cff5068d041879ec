package ui

import (
	"strings"

	"scoutgw/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type templateRowData struct {
	Filter string
	Name   string
	Params string
}

func templatesPage(principal domain.ContextPrincipal, rows []templateRowData) Node {
	tableRows := make([]Node, 0, len(rows))
	for i := range rows {
		r := rows[i]
		tableRows = append(tableRows, Tr(
			data.Show(containsExpr(r.Filter)),
			Td(Code(Text(r.Name))),
			Td(Text(r.Params)),
		))
	}

	tableNode := Node(emptyStateCard("No query templates are configured."))
	if len(tableRows) > 0 {
		tableNode = Div(Class(cardClass("table-wrap")), Table(Class("data-table"),
			THead(Tr(Th(Text("Template")), Th(Text("Parameters")))),
			TBody(Group(tableRows)),
		))
	}

	intro := Div(Class(cardClass()),
		P(Class(mutedClass()), Text("Templates expand to pre-approved SQL on the submit surface. "+
			"Expanded text still runs through every validation stage.")),
	)

	return appPage("Templates", "templates", principal,
		intro,
		quickFilterCard("Filter by template name"),
		tableNode,
	)
}

func joinParams(params []string) string {
	if len(params) == 0 {
		return "-"
	}
	return strings.Join(params, ", ")
}
