package expense

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/engine"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/refs"
	"github.com/Chative-core-poc-v1/draftflow/internal/rest"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	"github.com/Chative-core-poc-v1/draftflow/internal/usercontext"
)

const phone = "5564999990000"

func strp(s string) *string { return &s }

func newService(t *testing.T, h http.HandlerFunc) *Service {
	t.Helper()
	if h == nil {
		h = func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{}`)) }
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	kv := session.NewMemoryStore(0)
	users := usercontext.New(kv, usercontext.Config{}, nil, srv.URL)
	biz := "farm-7"
	users.SetUserContext(context.Background(), phone, usercontext.Patch{BusinessID: &biz})

	svc, err := NewService(engine.Deps{
		Store:   kv,
		Users:   users,
		API:     rest.New(rest.Config{BaseURL: srv.URL}, rest.WithHTTPClient(srv.Client())),
		BaseURL: srv.URL,
	}, false)
	require.NoError(t, err)
	return svc
}

func TestSupplierOnlyLeavesValueAndAreaMissing(t *testing.T) {
	svc := newService(t, nil)

	d, err := svc.UpdateDraft(context.Background(), phone, Upsert{Supplier: strp("Agro Insumos Ltda")})
	require.NoError(t, err)

	assert.Equal(t, []string{"value", "businessArea"}, svc.HasMissingFields(d))

	summary := svc.BuildDraftSummary(d)
	assert.Contains(t, summary, "- Fornecedor: Agro Insumos Ltda")
	assert.Contains(t, summary, "- Valor: (não informado)")
	assert.Contains(t, summary, "- Área de negócio: (não informado)")
}

func TestApplyUpdatesCoercesValues(t *testing.T) {
	f := NewFlow(false)
	var d Draft

	require.NoError(t, f.ApplyUpdates(&d, Upsert{
		Value:         "R$ 1.250,50",
		PaymentStatus: strp("Pendente"),
		DueDate:       strp("10/02/2025"),
		BusinessArea:  refs.Ref("a1", "Pecuária"),
	}))
	assert.Equal(t, 1250.5, d.Value)
	assert.Equal(t, PaymentPending, d.PaymentStatus)
	assert.Equal(t, "2025-02-10", d.DueDate)
	assert.Equal(t, "a1", d.BusinessArea.IDValue())

	summary := f.SummarySections()
	assert.Equal(t, "R$ 1.250,50", summary[1].Value(d))
	assert.Equal(t, "10/02/2025", summary[7].Value(d))
}

func TestFormatBRLGroupsThousands(t *testing.T) {
	assert.Equal(t, "R$ 1.234.567,89", formatBRL(1234567.891))
	assert.Equal(t, "R$ 12,00", formatBRL(12))
	assert.Equal(t, "R$ 0,05", formatBRL(0.05))
	assert.Equal(t, "", formatBRL(0))
}

func TestApplyUpdatesRejectsInvalidInputAtomically(t *testing.T) {
	f := NewFlow(false)
	d := Draft{Supplier: "Agro"}

	err := f.ApplyUpdates(&d, Upsert{Supplier: strp("Outro"), Value: "dez"})
	require.Error(t, err)
	assert.Equal(t, "Agro", d.Supplier)

	assert.ErrorIs(t, f.ApplyUpdates(&d, Upsert{Value: 0.0}), ErrInvalidValue)
	assert.ErrorIs(t, f.ApplyUpdates(&d, Upsert{PaymentStatus: strp("talvez")}), ErrInvalidPaymentStatus)
}

func TestDueDateRequiredOnlyWhenPending(t *testing.T) {
	f := NewFlow(false)
	d := Draft{Supplier: "Agro", Value: 10, BusinessArea: draft.NewRef("a1", "")}
	svc := newService(t, nil)

	assert.Empty(t, svc.HasMissingFields(d))

	d.PaymentStatus = PaymentPending
	assert.Equal(t, []string{"dueDate"}, svc.HasMissingFields(d))

	_, err := f.TransformToAPIPayload(d, engine.Scope{})
	assert.ErrorIs(t, err, ErrIncomplete)

	d.DueDate = "2025-03-01"
	assert.Empty(t, svc.HasMissingFields(d))
}

func TestCreatePostsExpense(t *testing.T) {
	var body map[string]any
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/financial/expenses", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"e-1","supplier":"Agro","value":99.9,"paymentStatus":"paid"}`))
	})

	d := Draft{Supplier: "Agro", Value: 99.9, BusinessArea: draft.NewRef("a1", "Lavoura")}
	res, err := svc.Create(context.Background(), phone, d)
	require.NoError(t, err)
	assert.Equal(t, "e-1", res.ID)
	assert.Equal(t, Record{ID: "e-1", Supplier: "Agro", Value: 99.9, PaymentStatus: PaymentPaid}, res.Record)

	assert.Equal(t, "farm-7", body["farmId"])
	assert.Equal(t, "a1", body["businessAreaId"])
	assert.Equal(t, PaymentPaid, body["paymentStatus"])
	assert.NotContains(t, body, "categoryId")
}

func TestPartialUpdateCarriesOnlyTouchedKeys(t *testing.T) {
	f := NewFlow(false)
	d := Draft{Supplier: "Agro", Value: 10, BusinessArea: draft.NewRef("a1", "")}
	u := Upsert{Value: "15,00", Category: refs.Null()}
	require.NoError(t, f.ApplyUpdates(&d, u))

	partial, err := f.BuildPartialUpdatePayload(d, u)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": 15.0, "categoryId": nil}, partial)
}

func TestListParamsAndMessages(t *testing.T) {
	f := NewFlow(false)
	scope := engine.Scope{FarmID: "farm-7"}

	assert.Equal(t, "expense", f.BuildListParams(ListCategories, scope).Get("type"))
	assert.Empty(t, f.BuildListParams(ListBusinessAreas, scope).Get("type"))
	assert.Contains(t, f.ListErrorMessage(ListCategories), "categorias")
	assert.NotEmpty(t, f.ListErrorMessage("unknown"))
}
