package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/invoice"
	"bahikhata/backend/internal/service"
	"bahikhata/backend/internal/store/memory"
)

var owner = domain.Actor{UserID: memory.SeedUserID, BusinessID: memory.SeedBusinessID}

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{})
	auth := NewAuthManager("test-secret-key", time.Hour)

	return New(svc, auth, "*", nil)
}

func tokenFor(t *testing.T, api *API, actor domain.Actor) string {
	t.Helper()
	token, _, err := api.auth.Sign(actor)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, api *API, token string, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func scenarioASale() domain.DocumentInput {
	return domain.DocumentInput{
		PartyID: memory.SeedCustomerID,
		Items: []domain.LineItem{{
			Name:       "Gel Pen",
			Qty:        decimal.NewFromInt(2),
			Rate:       decimal.NewFromInt(100),
			TaxPercent: decimal.NewFromInt(18),
		}},
		AmountReceived: decimal.NewFromInt(100),
	}
}

func createSale(t *testing.T, api *API, token string) domain.Document {
	t.Helper()
	res := doJSON(t, api, token, http.MethodPost, "/api/v1/sales", scenarioASale())
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var payload struct {
		Document domain.Document `json:"document"`
	}
	decodeBody(t, res, &payload)
	return payload.Document
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, "", http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var body map[string]any
	decodeBody(t, res, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestRequireAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	api := newTestAPI(t)

	if res := doJSON(t, api, "", http.MethodGet, "/api/v1/sales", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	if res := doJSON(t, api, "not-a-jwt", http.MethodGet, "/api/v1/sales", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", res.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, owner)

	sale := createSale(t, api, token)
	if sale.InvoiceNo != "INV-00001" {
		t.Fatalf("expected INV-00001, got %s", sale.InvoiceNo)
	}
	if !sale.TotalAmount.Equal(decimal.NewFromInt(236)) || !sale.BalanceAmount.Equal(decimal.NewFromInt(136)) {
		t.Fatalf("expected total 236 balance 136, got %s/%s", sale.TotalAmount, sale.BalanceAmount)
	}

	res := doJSON(t, api, token, http.MethodGet, "/api/v1/sales/next-invoice", nil)
	var preview domain.InvoicePreview
	decodeBody(t, res, &preview)
	if preview.InvoiceNo != "INV-00002" {
		t.Fatalf("expected preview INV-00002, got %+v", preview)
	}

	res = doJSON(t, api, token, http.MethodGet, "/api/v1/sales/"+sale.ID+"/summary", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected summary 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var summary struct {
		Summary invoice.Result `json:"summary"`
	}
	decodeBody(t, res, &summary)
	if !summary.Summary.FinalTotal.Equal(decimal.NewFromInt(236)) || !summary.Summary.CGSTTotal.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected summary %+v", summary.Summary)
	}

	update := scenarioASale()
	update.Items[0].Qty = decimal.NewFromInt(5)
	res = doJSON(t, api, token, http.MethodPut, "/api/v1/sales/"+sale.ID, update)
	if res.Code != http.StatusOK {
		t.Fatalf("expected update 200, got %d (body: %s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, token, http.MethodGet, "/api/v1/parties/"+memory.SeedCustomerID+"/transactions", nil)
	var ledger struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, res, &ledger)
	if len(ledger.Transactions) != 2 {
		t.Fatalf("expected 2 linked transactions, got %d", len(ledger.Transactions))
	}

	res = doJSON(t, api, token, http.MethodDelete, "/api/v1/sales/"+sale.ID, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected delete 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	var deleted domain.DeleteResult
	decodeBody(t, res, &deleted)
	if deleted.Message != "Sale deleted successfully" {
		t.Fatalf("unexpected delete message %q", deleted.Message)
	}

	if res := doJSON(t, api, token, http.MethodGet, "/api/v1/sales/"+sale.ID, nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected deleted sale hidden, got %d", res.Code)
	}
	if res := doJSON(t, api, token, http.MethodGet, "/api/v1/sales/"+sale.ID+"?include_deleted=true", nil); res.Code != http.StatusOK {
		t.Fatalf("expected deleted sale with include_deleted, got %d", res.Code)
	}
	if res := doJSON(t, api, token, http.MethodDelete, "/api/v1/sales/"+sale.ID, nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected second delete 404, got %d", res.Code)
	}

	res = doJSON(t, api, token, http.MethodGet, "/api/v1/sales?include_deleted=true", nil)
	var list struct {
		Documents []domain.Document `json:"documents"`
	}
	decodeBody(t, res, &list)
	if len(list.Documents) != 1 || !list.Documents[0].IsDeleted {
		t.Fatalf("expected one deleted sale listed, got %+v", list.Documents)
	}
}

func TestSaleReturnRoutesUseReturnNumbering(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, owner)

	res := doJSON(t, api, token, http.MethodPost, "/api/v1/sale-returns", domain.DocumentInput{
		PartyID:        memory.SeedCustomerID,
		Items:          []domain.LineItem{{ProductID: memory.SeedProductPenID, Name: "Gel Pen", Qty: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)}},
		AmountRefunded: decimal.NewFromInt(50),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var payload struct {
		Document domain.Document `json:"document"`
	}
	decodeBody(t, res, &payload)
	if payload.Document.Kind != domain.KindSaleReturn || payload.Document.InvoiceNo != "SR-00001" {
		t.Fatalf("unexpected return %+v", payload.Document)
	}

	if res := doJSON(t, api, token, http.MethodGet, "/api/v1/sales/"+payload.Document.ID, nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected return invisible under sales, got %d", res.Code)
	}

	res = doJSON(t, api, token, http.MethodDelete, "/api/v1/sale-returns/"+payload.Document.ID, nil)
	var deleted domain.DeleteResult
	decodeBody(t, res, &deleted)
	if deleted.Message != "Sale Return deleted successfully" {
		t.Fatalf("unexpected delete message %q", deleted.Message)
	}
}

func TestDocumentRequestErrors(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, owner)
	sale := createSale(t, api, token)
	stranger := tokenFor(t, api, domain.Actor{UserID: "someone", BusinessID: "other-business"})

	cases := []struct {
		name   string
		token  string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "malformed id", token: token, method: http.MethodGet, path: "/api/v1/sales/not-an-id", want: http.StatusBadRequest},
		{name: "other business", token: stranger, method: http.MethodGet, path: "/api/v1/sales/" + sale.ID, want: http.StatusNotFound},
		{name: "other business delete", token: stranger, method: http.MethodDelete, path: "/api/v1/sales/" + sale.ID, want: http.StatusNotFound},
		{name: "unknown field", token: token, method: http.MethodPost, path: "/api/v1/sales", body: map[string]any{"bogus": 1}, want: http.StatusBadRequest},
		{name: "bad payment status", token: token, method: http.MethodPost, path: "/api/v1/sales", body: map[string]any{"paymentStatus": "Maybe"}, want: http.StatusBadRequest},
		{name: "bad prefix", token: token, method: http.MethodGet, path: "/api/v1/sales/next-invoice?prefix=a-b", want: http.StatusBadRequest},
		{name: "unknown action", token: token, method: http.MethodGet, path: "/api/v1/sales/" + sale.ID + "/pdf", want: http.StatusNotFound},
		{name: "method not allowed", token: token, method: http.MethodPatch, path: "/api/v1/sales/" + sale.ID, want: http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := doJSON(t, api, tc.token, tc.method, tc.path, tc.body)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d (body: %s)", tc.want, res.Code, res.Body.String())
			}
		})
	}
}

func TestDirectoryRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, owner)

	res := doJSON(t, api, token, http.MethodPost, "/api/v1/parties", domain.PartyCreateRequest{Name: "  Verma Agencies  "})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var created struct {
		Party domain.Party `json:"party"`
	}
	decodeBody(t, res, &created)
	if created.Party.Name != "Verma Agencies" || created.Party.Kind != domain.PartyKindCustomer {
		t.Fatalf("unexpected party %+v", created.Party)
	}

	res = doJSON(t, api, token, http.MethodGet, "/api/v1/parties", nil)
	var parties struct {
		Parties []domain.Party `json:"parties"`
	}
	decodeBody(t, res, &parties)
	if len(parties.Parties) != 3 {
		t.Fatalf("expected 3 parties, got %d", len(parties.Parties))
	}

	if res := doJSON(t, api, token, http.MethodGet, "/api/v1/parties/"+created.Party.ID, nil); res.Code != http.StatusOK {
		t.Fatalf("expected party 200, got %d", res.Code)
	}
	if res := doJSON(t, api, token, http.MethodPost, "/api/v1/parties", map[string]any{"name": ""}); res.Code != http.StatusBadRequest {
		t.Fatalf("expected empty party name rejected, got %d", res.Code)
	}

	res = doJSON(t, api, token, http.MethodGet, "/api/v1/products/"+memory.SeedProductInkID, nil)
	var product struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, res, &product)
	if product.Product.Name != "Ink Bottle" {
		t.Fatalf("unexpected product %+v", product.Product)
	}

	res = doJSON(t, api, token, http.MethodGet, "/api/v1/audit-logs?limit=1", nil)
	var logs struct {
		Logs []domain.AuditLog `json:"logs"`
	}
	decodeBody(t, res, &logs)
	if len(logs.Logs) != 1 || logs.Logs[0].Action != "party_create" {
		t.Fatalf("unexpected audit logs %+v", logs.Logs)
	}
}

func TestUpdateAcceptsFetchedDocumentEcho(t *testing.T) {
	api := newTestAPI(t)
	token := tokenFor(t, api, owner)
	created := createSale(t, api, token)

	echo := created
	echo.Notes = "edited from fetched copy"
	echo.TotalAmount = decimal.NewFromInt(999)
	echo.InvoiceNo = "INV-99999"

	res := doJSON(t, api, token, http.MethodPut, "/api/v1/sales/"+created.ID, echo)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for echoed document, got %d (body: %s)", res.Code, res.Body.String())
	}
	var payload struct {
		Document domain.Document `json:"document"`
	}
	decodeBody(t, res, &payload)
	if payload.Document.Notes != "edited from fetched copy" {
		t.Fatalf("expected notes updated, got %q", payload.Document.Notes)
	}
	if payload.Document.InvoiceNo != created.InvoiceNo || !payload.Document.TotalAmount.Equal(decimal.NewFromInt(236)) {
		t.Fatalf("expected read-only fields ignored, got %s total %s", payload.Document.InvoiceNo, payload.Document.TotalAmount)
	}

	unknown := map[string]any{"notes": "x", "bogusField": true}
	if res := doJSON(t, api, token, http.MethodPut, "/api/v1/sales/"+created.ID, unknown); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}
