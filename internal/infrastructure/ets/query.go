package ets

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/fieldops/backend/internal/domain/integration"
)

// form encodes the query as the listing form body
func (q listQuery) form() url.Values {
	v := url.Values{}
	v.Set("qtype", q.QType)
	v.Set("query", q.Query)
	v.Set("oper", q.Oper)
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("rp", strconv.Itoa(q.RP))
	if q.SortName != "" {
		v.Set("sortname", q.SortName)
		order := q.SortOrder
		if order == "" {
			order = "asc"
		}
		v.Set("sortorder", order)
	}
	if len(q.Grid) > 0 {
		// gridCondition holds only strings, Marshal cannot fail
		b, _ := json.Marshal(q.Grid)
		v.Set("grid_param", string(b))
	}
	return v
}

// technicianTicketsQuery lists open tickets of one technician, one page at a time
func technicianTicketsQuery(externalTechnicianID string, page, pageSize int) listQuery {
	return listQuery{
		QType:     resourceTicket + ".id_tecnico",
		Query:     externalTechnicianID,
		Oper:      "=",
		Page:      page,
		RP:        pageSize,
		SortName:  resourceTicket + ".id",
		SortOrder: "asc",
		Grid: []gridCondition{
			{Table: resourceTicket + ".id_tecnico", Operator: "=", Value: externalTechnicianID},
			{Table: resourceTicket + ".status", Operator: "IN", Value: strings.Join(integration.OpenTicketStatuses, ",")},
		},
	}
}

// byIDQuery selects a single record of a resource
func byIDQuery(resource, id string) listQuery {
	return listQuery{
		QType: resource + ".id",
		Query: id,
		Oper:  "=",
		Page:  1,
		RP:    1,
	}
}

// probeQuery is the cheapest valid listing, used to test connectivity
func probeQuery() listQuery {
	return listQuery{
		QType: resourceTicket + ".id",
		Query: "1",
		Oper:  ">=",
		Page:  1,
		RP:    1,
	}
}
