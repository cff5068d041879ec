package ui

import (
	"scoutgw/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type auditListRowData struct {
	Filter      string
	ExecutionID string
	URL         string
	ClientID    string
	Status      domain.AuditStatus
	Violation   string
	Rows        string
	Duration    string
	Created     string
}

var auditStatusOptions = []string{
	"", "open", "approved", "rejected", "executed", "failed", "timed_out",
}

func auditListPage(principal domain.ContextPrincipal, rows []auditListRowData, activeStatus string, page domain.PageRequest, total int64) Node {
	tableRows := make([]Node, 0, len(rows))
	for i := range rows {
		r := rows[i]
		tableRows = append(tableRows, Tr(
			data.Show(containsExpr(r.Filter)),
			Td(A(Href(r.URL), Code(Text(r.ExecutionID)))),
			Td(Text(r.ClientID)),
			Td(statusLabel(string(r.Status), statusTone(r.Status))),
			Td(Text(r.Violation)),
			Td(Text(r.Rows)),
			Td(Text(r.Duration)),
			Td(Text(r.Created)),
		))
	}

	tableNode := Node(emptyStateCard("No audit records match this filter."))
	if len(tableRows) > 0 {
		tableNode = Div(Class(cardClass("table-wrap")), Table(Class("data-table"),
			THead(Tr(
				Th(Text("Execution")),
				Th(Text("Client")),
				Th(Text("Status")),
				Th(Text("Violation")),
				Th(Text("Rows")),
				Th(Text("Duration")),
				Th(Text("Created")),
			)),
			TBody(Group(tableRows)),
		))
	}

	return appPage("Audit Trail", "audit", principal,
		quickFilterCard("Filter by execution id, client, or status", statusFilterForm(activeStatus)),
		tableNode,
		paginationCard("/ui/audit", page, total),
	)
}

// statusFilterForm submits server-side so the filter applies across pages,
// not just the rows already rendered.
func statusFilterForm(active string) Node {
	options := make([]Node, 0, len(auditStatusOptions))
	for _, s := range auditStatusOptions {
		label := s
		if s == "" {
			label = "all statuses"
		}
		attrs := []Node{Value(s), Text(label)}
		if s == active {
			attrs = append(attrs, Selected())
		}
		options = append(options, Option(attrs...))
	}
	return Form(
		Method("get"),
		Action("/ui/audit"),
		Class("d-flex flex-items-center gap-2"),
		Select(Name("status"), Class("form-select"), Group(options)),
		Button(Type("submit"), Class("btn btn-sm"), Text("Apply")),
	)
}

type auditDetailPageData struct {
	Principal    domain.ContextPrincipal
	ExecutionID  string
	ClientID     string
	Status       domain.AuditStatus
	QueryText    string
	Violation    string
	ErrorMessage string
	Rows         string
	Duration     string
	Created      string
	Closed       string
}

func auditDetailPage(d auditDetailPageData) Node {
	return appPage("Execution: "+d.ExecutionID, "audit", d.Principal,
		Div(Class(cardClass()),
			P(Text("Status: "), statusLabel(string(d.Status), statusTone(d.Status))),
			P(Text("Client: "+d.ClientID)),
			P(Text("Violation: "+d.Violation)),
			P(Text("Rows returned: "+d.Rows)),
			P(Text("Duration: "+d.Duration)),
			P(Text("Opened: "+d.Created)),
			P(Text("Closed: "+d.Closed)),
		),
		Div(Class(cardClass()), H2(Text("Query Text")), Pre(Text(d.QueryText))),
		Div(Class(cardClass()), H2(Text("Error")), P(Text(d.ErrorMessage))),
	)
}
