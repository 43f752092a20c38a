package ets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/backend/internal/domain/integration"
)

func newTestClient(t *testing.T, baseURL string, mutate func(cfg *ClientConfig)) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.BaseURL = baseURL
	cfg.Token = "12:secret"
	cfg.RateLimitQPS = 0
	cfg.Retry = NoRetry()
	cfg.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return client
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ClientConfig
		wantErr error
	}{
		{"valid", ClientConfig{BaseURL: "https://ets.example.com/", Token: "t"}, nil},
		{"missing base url", ClientConfig{Token: "t"}, ErrConfigMissingBaseURL},
		{"relative base url", ClientConfig{BaseURL: "ets.example.com", Token: "t"}, ErrConfigInvalidBaseURL},
		{"missing token", ClientConfig{BaseURL: "https://ets.example.com"}, ErrConfigMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://ets.example.com", tt.config.BaseURL)
			assert.Equal(t, DefaultTimeout, tt.config.Timeout)
			assert.Equal(t, DefaultPageSize, tt.config.PageSize)
			assert.Equal(t, 1, tt.config.Retry.MaxAttempts)
			assert.Equal(t, "https://ets.example.com/webservice/v1/cliente", tt.config.endpoint("cliente"))
		})
	}
}

// ---------------------------------------------------------------------------
// Listing Tests
// ---------------------------------------------------------------------------

func TestClient_ListTicketsForTechnician_Paginates(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webservice/v1/su_oss_chamado", r.URL.Path)
		assert.Equal(t, "listar", r.Header.Get("ixcsoft"))
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("12:secret")), r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "su_oss_chamado.id_tecnico", r.PostForm.Get("qtype"))
		assert.Equal(t, "55", r.PostForm.Get("query"))
		assert.Equal(t, "=", r.PostForm.Get("oper"))
		assert.Equal(t, "2", r.PostForm.Get("rp"))

		var grid []gridCondition
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("grid_param")), &grid))
		if assert.Len(t, grid, 2) {
			assert.Equal(t, gridCondition{Table: "su_oss_chamado.status", Operator: "IN", Value: "A,E"}, grid[1])
		}

		switch r.PostForm.Get("page") {
		case "1":
			fmt.Fprint(w, `{"page":"1","total":"3","registros":[
				{"id":900,"status":"A","prioridade":"U","id_tecnico":55,"id_cliente":"10","mensagem":"sem sinal"},
				{"id":"901","status":"E","prioridade":"M","id_tecnico":"55","data_abertura":"2026-01-05 08:30:00"}
			]}`)
		case "2":
			fmt.Fprint(w, `{"page":"2","total":3,"registros":[{"id":"902","status":"A","prioridade":"B","id_tecnico":"55"}]}`)
		default:
			t.Errorf("unexpected page %q", r.PostForm.Get("page"))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) { cfg.PageSize = 2 })
	tickets, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.NoError(t, err)

	require.Len(t, tickets, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "900", tickets[0].ID)
	assert.Equal(t, "A", tickets[0].Status)
	assert.Equal(t, "U", tickets[0].Priority)
	assert.Equal(t, "55", tickets[0].TechnicianExternalID)
	assert.Equal(t, "10", tickets[0].CustomerExternalID)
	assert.Equal(t, "sem sinal", tickets[0].Message)
	assert.Contains(t, string(tickets[0].Raw), `"id":900`)
	require.NotNil(t, tickets[1].OpenedAt)
	assert.Equal(t, 2026, tickets[1].OpenedAt.Year())
	assert.Equal(t, "902", tickets[2].ID)
}

func TestClient_ListTicketsForTechnician_MissingTotalKeepsPaging(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, r.ParseForm())
		switch r.PostForm.Get("page") {
		case "1":
			fmt.Fprint(w, `{"page":"1","registros":[{"id":"900","status":"A"},{"id":"901","status":"A"}]}`)
		case "2":
			fmt.Fprint(w, `{"page":"2","registros":[{"id":"902","status":"E"}]}`)
		default:
			t.Errorf("unexpected page %q", r.PostForm.Get("page"))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) { cfg.PageSize = 2 })
	tickets, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.NoError(t, err)
	assert.Len(t, tickets, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ListTicketsForTechnician_PageLimitIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		page := r.PostForm.Get("page")
		fmt.Fprintf(w, `{"page":"%s","total":"100","registros":[{"id":"a%s","status":"A"},{"id":"b%s","status":"A"}]}`, page, page, page)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.PageSize = 2
		cfg.MaxPages = 2
	})
	tickets, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrListingTruncated)
	assert.Len(t, tickets, 4)
}

func TestClient_ListTicketsForTechnician_EmptyIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"page":"1","total":"0"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	tickets, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.NoError(t, err)
	assert.NotNil(t, tickets)
	assert.Empty(t, tickets)
}

func TestClient_ListTicketsForTechnician_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind integration.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, integration.ErrorKindAuth},
		{"forbidden", http.StatusForbidden, `{}`, integration.ErrorKindAuth},
		{"rate limited", http.StatusTooManyRequests, `{}`, integration.ErrorKindRateLimited},
		{"server error", http.StatusBadGateway, `oops`, integration.ErrorKindNetwork},
		{"bad request", http.StatusBadRequest, `{}`, integration.ErrorKindRejected},
		{"not json", http.StatusOK, `<html>login</html>`, integration.ErrorKindMalformedResponse},
		{"wrong shape", http.StatusOK, `{"registros":"nope"}`, integration.ErrorKindMalformedResponse},
		{"error envelope", http.StatusOK, `{"type":"error","message":"Token inválido"}`, integration.ErrorKindRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, nil)
			tickets, err := client.ListTicketsForTechnician(context.Background(), "55")
			require.Error(t, err)
			assert.Nil(t, tickets)
			assert.True(t, integration.IsKind(err, tt.wantKind), "got %v", err)
		})
	}
}

func TestClient_ErrorBodyIsCutOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", errorBodySnippet-1) + "ção não permitida"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	err := client.PushCompletion(context.Background(), integration.CompletionPush{TicketID: "900"})
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.ErrorKindRejected))
	assert.True(t, utf8.ValidString(err.Error()), "error %q is not valid UTF-8", err.Error())
	assert.NotContains(t, err.Error(), "\uFFFD")

	latin1 := bodySnippet([]byte("opera\xe7\xe3o negada"))
	assert.True(t, utf8.ValidString(latin1))
}

func TestClient_ListTicketsForTechnician_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.ErrorKindTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_ListTicketsForTechnician_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url, nil)
	_, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.ErrorKindNetwork), "got %v", err)
}

func TestClient_ListTicketsForTechnician_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"page":"1","total":"1","registros":[{"id":"900","status":"A"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.Retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	})
	tickets, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ListTicketsForTechnician_AuthIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.Retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	})
	_, err := client.ListTicketsForTechnician(context.Background(), "55")
	assert.True(t, integration.IsKind(err, integration.ErrorKindAuth))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RateLimiterBoundedByTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"page":"1","total":"0"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
		cfg.RateLimitQPS = 0.1
		cfg.RateLimitBurst = 1
		cfg.Timeout = 100 * time.Millisecond
	})

	_, err := client.ListTicketsForTechnician(context.Background(), "55")
	require.NoError(t, err)

	_, err = client.ListTicketsForTechnician(context.Background(), "55")
	require.Error(t, err)
	assert.True(t, integration.IsKind(err, integration.ErrorKindTimeout), "got %v", err)
}

func TestClient_ListTicketsForTechnician_EmptyTechnician(t *testing.T) {
	client := newTestClient(t, "https://ets.invalid", nil)
	_, err := client.ListTicketsForTechnician(context.Background(), "  ")
	assert.True(t, integration.IsKind(err, integration.ErrorKindRejected))
}

// ---------------------------------------------------------------------------
// Single Record Tests
// ---------------------------------------------------------------------------

func TestClient_FetchTicket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "su_oss_chamado.id", r.PostForm.Get("qtype"))
		if r.PostForm.Get("query") == "900" {
			fmt.Fprint(w, `{"page":"1","total":"1","registros":[{"id":"900","status":"E","prioridade":"A"}]}`)
			return
		}
		fmt.Fprint(w, `{"page":"1","total":"0","registros":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	ticket, err := client.FetchTicket(context.Background(), "900")
	require.NoError(t, err)
	assert.Equal(t, "E", ticket.Status)

	_, err = client.FetchTicket(context.Background(), "404")
	assert.ErrorIs(t, err, integration.ErrTicketNotFound)
}

func TestClient_FetchCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webservice/v1/cliente", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		switch r.PostForm.Get("query") {
		case "10":
			fmt.Fprint(w, `{"page":"1","total":"1","registros":[{"id":"10","razao":"Maria Souza","endereco":"Rua A","numero":"12","bairro":"Centro","telefone_celular":"","fone":"5533"}]}`)
		case "11":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"page":"1","total":"0"}`)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	customer := client.FetchCustomer(context.Background(), "10")
	require.NotNil(t, customer)
	assert.Equal(t, "Maria Souza", customer.Name)
	assert.Equal(t, "Rua A, 12 - Centro", customer.Address)
	assert.Equal(t, "5533", customer.Phone)

	assert.Nil(t, client.FetchCustomer(context.Background(), "11"))
	assert.Nil(t, client.FetchCustomer(context.Background(), "12"))
	assert.Nil(t, client.FetchCustomer(context.Background(), ""))
}

// ---------------------------------------------------------------------------
// Push Tests
// ---------------------------------------------------------------------------

func TestClient_PushCompletion(t *testing.T) {
	completedAt := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/webservice/v1/su_oss_chamado_fechar", r.URL.Path)
			assert.Empty(t, r.Header.Get("ixcsoft"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "900", r.PostForm.Get("id_chamado"))
			assert.Equal(t, "F", r.PostForm.Get("status"))
			assert.Equal(t, "55", r.PostForm.Get("id_tecnico"))
			assert.Equal(t, "trocado conector", r.PostForm.Get("mensagem_resposta"))
			assert.Equal(t, "1 conector RJ45", r.PostForm.Get("materiais_utilizados"))
			assert.Equal(t, "2026-02-03 14:00:00", r.PostForm.Get("data_fechamento"))
			fmt.Fprint(w, `{"type":"success","message":"Chamado fechado","id":"900"}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		err := client.PushCompletion(context.Background(), integration.CompletionPush{
			TicketID:             "900",
			TechnicianExternalID: "55",
			Note:                 "trocado conector",
			MaterialsUsed:        "1 conector RJ45",
			CompletedAt:          completedAt,
		})
		assert.NoError(t, err)
	})

	t.Run("rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"type":"error","message":"Chamado inexistente"}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, nil)
		err := client.PushCompletion(context.Background(), integration.CompletionPush{TicketID: "900"})
		require.Error(t, err)
		assert.True(t, integration.IsKind(err, integration.ErrorKindRejected))
		assert.Contains(t, err.Error(), "Chamado inexistente")
	})

	t.Run("push is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL, func(cfg *ClientConfig) {
			cfg.Retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
		})
		err := client.PushCompletion(context.Background(), integration.CompletionPush{TicketID: "900"})
		assert.True(t, integration.IsKind(err, integration.ErrorKindNetwork))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestClient_TestConnection(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("rp"))
		fmt.Fprint(w, `{"page":"1","total":"0"}`)
	}))
	defer ok.Close()
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()

	assert.True(t, newTestClient(t, ok.URL, nil).TestConnection(context.Background()))
	assert.False(t, newTestClient(t, denied.URL, nil).TestConnection(context.Background()))
}

// ---------------------------------------------------------------------------
// Wire Type Tests
// ---------------------------------------------------------------------------

func TestFlexScalars(t *testing.T) {
	var env struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
		N flexInt    `json:"n"`
		M flexInt    `json:"m"`
		E flexInt    `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":42,"c":null,"n":"17","m":3,"e":""}`), &env))
	assert.Equal(t, flexString("x"), env.A)
	assert.Equal(t, flexString("42"), env.B)
	assert.Equal(t, flexString(""), env.C)
	assert.Equal(t, flexInt(17), env.N)
	assert.Equal(t, flexInt(3), env.M)
	assert.Equal(t, flexInt(0), env.E)

	var bad struct {
		N flexInt `json:"n"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"n":"abc"}`), &bad))
}

func TestListQuery_Form(t *testing.T) {
	form := technicianTicketsQuery("55", 3, 50).form()
	assert.Equal(t, "3", form.Get("page"))
	assert.Equal(t, "50", form.Get("rp"))
	assert.Equal(t, "su_oss_chamado.id", form.Get("sortname"))
	assert.Equal(t, "asc", form.Get("sortorder"))
	assert.JSONEq(t,
		`[{"TB":"su_oss_chamado.id_tecnico","OP":"=","P":"55"},{"TB":"su_oss_chamado.status","OP":"IN","P":"A,E"}]`,
		form.Get("grid_param"))

	probe := probeQuery().form()
	assert.Empty(t, probe.Get("grid_param"))
	assert.Equal(t, strconv.Itoa(1), probe.Get("rp"))
}
