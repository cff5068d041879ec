package ui

import (
	"strconv"

	"scoutgw/internal/domain"
	"scoutgw/internal/service/gateway"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

func capabilitiesPage(principal domain.ContextPrincipal, caps gateway.Capabilities) Node {
	tables := make([]Node, 0, len(caps.AllowedTables))
	for _, t := range caps.AllowedTables {
		tables = append(tables, Li(Code(Text(t))))
	}
	functions := make([]Node, 0, len(caps.AllowedFunctions))
	for _, f := range caps.AllowedFunctions {
		functions = append(functions, Li(Code(Text(f))))
	}

	return appPage("Capabilities", "capabilities", principal,
		Div(Class(cardClass()),
			H2(Text("Policy")),
			P(Text("Validator policy: "), statusLabel(caps.Policy, "accent")),
			P(Text("Maximum query length: "+strconv.Itoa(caps.MaxLength)+" characters")),
			P(Text("Maximum row bound: "+strconv.Itoa(caps.MaxRowCap))),
		),
		Div(Class(cardClass()),
			H2(Text("Allowed Tables")),
			P(Class(mutedClass()), Text("Queries must reference at least one of these relations.")),
			Ul(Group(tables)),
		),
		Div(Class(cardClass()),
			H2(Text("Allowed Functions")),
			Ul(Group(functions)),
		),
		Div(Class(cardClass()),
			H2(Text("Example Query")),
			Pre(Text(caps.Example)),
		),
	)
}
