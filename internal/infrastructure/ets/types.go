package ets

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/backend/internal/domain/integration"
)

// Resources of the webservice API
const (
	resourceTicket      = "su_oss_chamado"
	resourceCloseTicket = "su_oss_chamado_fechar"
	resourceCustomer    = "cliente"
)

// Header that switches a POST to listing semantics server-side
const (
	headerListFlag  = "ixcsoft"
	headerListValue = "listar"
)

// openedAtLayout is the timestamp layout used in ticket records
const openedAtLayout = "2006-01-02 15:04:05"

// ---------------------------------------------------------------------------
// Flexible scalars
// ---------------------------------------------------------------------------

// flexString decodes a JSON string or number into a string
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string into an int64.
// An empty string decodes to zero.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	v := strings.TrimSpace(string(s))
	if v == "" {
		*n = 0
		return nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}
	*n = flexInt(parsed)
	return nil
}

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

// gridCondition is one entry of the grid_param filter array
type gridCondition struct {
	Table    string `json:"TB"`
	Operator string `json:"OP"`
	Value    string `json:"P"`
}

// listQuery is the listing query grammar
type listQuery struct {
	QType     string
	Query     string
	Oper      string
	Page      int
	RP        int
	SortName  string
	SortOrder string
	Grid      []gridCondition
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// listResponse is the envelope of every listing call
type listResponse struct {
	Type      string            `json:"type,omitempty"`
	Message   string            `json:"message,omitempty"`
	Page      flexInt           `json:"page"`
	Total     flexInt           `json:"total"`
	Registros []json.RawMessage `json:"registros"`
}

// mutationResponse is returned by write calls
type mutationResponse struct {
	Type    string     `json:"type"`
	Message string     `json:"message"`
	ID      flexString `json:"id,omitempty"`
}

// ticketRecord is one su_oss_chamado registro
type ticketRecord struct {
	ID           flexString `json:"id"`
	CustomerID   flexString `json:"id_cliente"`
	TechnicianID flexString `json:"id_tecnico"`
	Status       string     `json:"status"`
	Priority     string     `json:"prioridade"`
	Subject      string     `json:"assunto"`
	Message      string     `json:"mensagem"`
	OpenedAt     string     `json:"data_abertura"`
	CustomerName string     `json:"nome_cliente"`
	Address      string     `json:"endereco"`
	District     string     `json:"bairro"`
	Phone        string     `json:"telefone"`
}

// customerRecord is one cliente registro
type customerRecord struct {
	ID              flexString `json:"id"`
	LegalName       string     `json:"razao"`
	TradeName       string     `json:"fantasia"`
	Address         string     `json:"endereco"`
	Number          string     `json:"numero"`
	District        string     `json:"bairro"`
	MobilePhone     string     `json:"telefone_celular"`
	Phone           string     `json:"fone"`
	CommercialPhone string     `json:"telefone_comercial"`
}

func (r ticketRecord) toDomain(raw json.RawMessage) integration.ExternalTicket {
	t := integration.ExternalTicket{
		ID:                   strings.TrimSpace(string(r.ID)),
		Status:               strings.TrimSpace(r.Status),
		Priority:             strings.TrimSpace(r.Priority),
		TechnicianExternalID: strings.TrimSpace(string(r.TechnicianID)),
		CustomerExternalID:   strings.TrimSpace(string(r.CustomerID)),
		Subject:              r.Subject,
		Message:              r.Message,
		CustomerName:         r.CustomerName,
		CustomerAddress:      joinNonEmpty(", ", r.Address, r.District),
		CustomerPhone:        r.Phone,
		Raw:                  raw,
	}
	if opened, err := time.ParseInLocation(openedAtLayout, strings.TrimSpace(r.OpenedAt), time.Local); err == nil {
		t.OpenedAt = &opened
	}
	return t
}

func (r customerRecord) toDomain() *integration.ExternalCustomer {
	name := r.LegalName
	if strings.TrimSpace(name) == "" {
		name = r.TradeName
	}
	street := strings.TrimSpace(r.Address)
	if n := strings.TrimSpace(r.Number); n != "" && street != "" {
		street = street + ", " + n
	}
	return &integration.ExternalCustomer{
		ID:      strings.TrimSpace(string(r.ID)),
		Name:    strings.TrimSpace(name),
		Address: joinNonEmpty(" - ", street, r.District),
		Phone:   firstNonEmpty(r.MobilePhone, r.Phone, r.CommercialPhone),
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
