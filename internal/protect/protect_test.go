package protect

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/sdk"
	"github.com/arko-chat/protect/internal/simulator"
)

const testAPIKey = "test-key"

// backend is a fake insurance API mounted under /v1.
type backend struct {
	t *testing.T

	mu         sync.Mutex
	bodies     map[string]map[string]any
	paidStatus string
	bindStatus string
	policies   string

	policyCalls atomic.Int32
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{
		t:          t,
		bodies:     make(map[string]map[string]any),
		paidStatus: QuotePaid,
		bindStatus: QuoteBound,
		policies:   `{"data":[]}`,
	}

	r := chi.NewRouter()
	r.Use(b.auth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/applications", b.reply("create", `{"id":77}`))
		r.Put("/applications/{id}", b.reply("update", `{"id":77,"status":"updated"}`))
		r.Post("/submissions", b.reply("submit", `{"id":"sub-1"}`))
		r.Get("/submissions/{id}/generate-quotes", b.reply("quotes", `{
			"id":"sub-1",
			"quotes":[{
				"id":"Q1",
				"status":"generated",
				"premium":{"total_premium":150,"tax":18,"premium_breakdown":{"premium":132}},
				"data":{"beep_cards":[{"beep_card_number":"6378051234567890","applicant_first_name":"Juan"}]}
			}]
		}`))
		r.Post("/quotes/{id}/payments", func(w http.ResponseWriter, req *http.Request) {
			b.record("paid", req)
			b.mu.Lock()
			st := b.paidStatus
			b.mu.Unlock()
			_, _ = io.WriteString(w, `{"status":"`+st+`"}`)
		})
		r.Post("/quotes/{id}/bind", func(w http.ResponseWriter, req *http.Request) {
			b.record("bind", req)
			b.mu.Lock()
			st := b.bindStatus
			b.mu.Unlock()
			_, _ = io.WriteString(w, `{"status":"`+st+`"}`)
		})
		r.Get("/policies", func(w http.ResponseWriter, req *http.Request) {
			b.policyCalls.Add(1)
			assert.Equal(t, "user@test.com", req.URL.Query().Get("external_id"))
			b.mu.Lock()
			body := b.policies
			b.mu.Unlock()
			_, _ = io.WriteString(w, body)
		})
	})

	srv := httptest.NewTLSServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *backend) record(name string, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.bodies[name] = body
	b.mu.Unlock()
}

func (b *backend) reply(name, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.record(name, r)
		_, _ = io.WriteString(w, body)
	}
}

func (b *backend) setStatuses(paid, bind string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paidStatus, b.bindStatus = paid, bind
}

func (b *backend) setPolicies(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policies = body
}

func (b *backend) body(name string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[name]
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc     *Service
	sw      *sdk.Switch
	sim     *simulator.Simulator
	backend *backend
}

func newFixture(t *testing.T, simOpts simulator.Options) *fixture {
	t.Helper()
	b, srv := newBackend(t)

	simOpts.Seed = 1
	simOpts.HTTPClient = srv.Client()
	simOpts.Logger = quiet()
	sw := sdk.WithTransport(nil, sdk.Options{Simulator: simOpts, Logger: quiet()})

	svc, err := New(sw, Options{
		APIURL:        srv.URL + "/v1",
		APIKey:        testAPIKey,
		MerchantCode:  "BEEP-MERCH",
		ReadyFallback: -1,
		Now:           func() time.Time { return time.Date(2000, 6, 1, 12, 0, 0, 0, time.UTC) },
		Logger:        quiet(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		svc.Close()
		sw.Close()
	})
	return &fixture{svc: svc, sw: sw, sim: sw.Simulator(), backend: b}
}

func TestNewClient_SplitsAPIURL(t *testing.T) {
	c, err := NewClient(func() bridge.Host { return nil }, "https://api.example.com:8443/v1/", "k", quiet())
	require.NoError(t, err)
	assert.Equal(t, "api.example.com:8443", c.BaseURL())
	assert.Equal(t, "/v1", c.BasePath())

	_, err = NewClient(func() bridge.Host { return nil }, "not a url", "k", quiet())
	assert.Error(t, err)

	_, err = NewClient(nil, "https://api.example.com", "k", quiet())
	assert.Error(t, err)
}

func TestEnroll_SubmitsApplication(t *testing.T) {
	f := newFixture(t, simulator.Options{})

	quotes, err := f.svc.Enroll(context.Background(), []Applicant{{
		CardNumber: "6378051234567890",
		FirstName:  "Juan",
		LastName:   "Dela Cruz",
		Mobile:     "09171234567",
		Email:      "juan.delacruz@example.com",
		BirthDate:  "1990-01-01",
	}})
	require.NoError(t, err)

	q, ok := quotes.First()
	require.True(t, ok)
	assert.Equal(t, bridge.ID("Q1"), q.ID)
	assert.Equal(t, QuoteGenerated, q.Status)

	create := f.backend.body("create")
	assert.Equal(t, "philippines", create["country"])
	assert.Equal(t, []any{"PA-AIG-BEEP"}, create["products"])
	assert.Equal(t, "user@test.com", create["external_id"])

	update := f.backend.body("update")
	params := update["params"].(map[string]any)
	details := params["beep_card_details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "1990-01-01", details[0].(map[string]any)["applicant_dob"])

	assert.Equal(t, float64(77), f.backend.body("submit")["application_id"])
}

func TestEnroll_UserFailure(t *testing.T) {
	f := newFixture(t, simulator.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Enroll(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, MsgUserEmail, UserMessage(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckout_PaysAndBinds(t *testing.T) {
	f := newFixture(t, simulator.Options{})
	ctx := context.Background()

	quotes, err := f.svc.Enroll(ctx, nil)
	require.NoError(t, err)

	sum := f.svc.OpenCheckout(ctx, quotes)
	assert.Equal(t, CheckoutTitle, f.sim.Title())
	assert.Equal(t, "PHP 150.00", sum.Total)
	assert.Equal(t, "PHP 132.00", sum.BasePremium)
	assert.Equal(t, "PHP 18.00", sum.Taxes)
	require.Len(t, sum.Cards, 1)

	rc, err := f.svc.Checkout(ctx, quotes)
	require.NoError(t, err)
	assert.True(t, rc.Bound)
	assert.True(t, rc.Payment.Succeeded())
	assert.Equal(t, rc.Reference.ReferenceNumber, rc.Payment.ReferenceNumber)
	assert.True(t, f.sim.Session().Issued(rc.Reference.ReferenceNumber))

	paid := f.backend.body("paid")
	assert.Equal(t, map[string]any{"currency": "PHP", "value": float64(150)}, paid["amount"])
	assert.Equal(t, "paid", paid["status"])
	assert.Equal(t, "beep", paid["provider"])
	assert.Equal(t, "monthly", paid["payment_mode"])
	assert.Equal(t, rc.Reference.ReferenceNumber, paid["transaction_id"])
	assert.NotNil(t, f.backend.body("bind"))
}

func TestCheckout_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no generated quote", func(t *testing.T) {
		f := newFixture(t, simulator.Options{})
		_, err := f.svc.Checkout(ctx, Quotes{Quotes: []Quote{{ID: "Q1", Status: "expired", Premium: &Premium{}}}})
		assert.ErrorIs(t, err, ErrNoQuote)
		assert.Equal(t, MsgQuoteUnavailable, UserMessage(err))

		_, err = f.svc.Checkout(ctx, Quotes{})
		assert.Equal(t, MsgQuoteUnavailable, UserMessage(err))
	})

	t.Run("reference declined", func(t *testing.T) {
		f := newFixture(t, simulator.Options{FailReferenceNumber: true})
		quotes, err := f.svc.Enroll(ctx, nil)
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, quotes)
		assert.Equal(t, "reference number request declined", UserMessage(err))
		assert.Nil(t, f.backend.body("paid"))
	})

	t.Run("payment declined", func(t *testing.T) {
		f := newFixture(t, simulator.Options{PaymentStatus: "FAILED"})
		quotes, err := f.svc.Enroll(ctx, nil)
		require.NoError(t, err)

		rc, err := f.svc.Checkout(ctx, quotes)
		assert.Equal(t, MsgPaymentDeclined, UserMessage(err))
		assert.Equal(t, "FAILED", rc.Payment.Status)
		assert.False(t, rc.Bound)
	})

	t.Run("payment error", func(t *testing.T) {
		f := newFixture(t, simulator.Options{PaymentStatus: bridge.PaymentError})
		quotes, err := f.svc.Enroll(ctx, nil)
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, quotes)
		assert.Equal(t, "Payment error", UserMessage(err))
	})

	t.Run("not bound", func(t *testing.T) {
		f := newFixture(t, simulator.Options{})
		f.backend.setStatuses(QuotePaid, "pending")
		quotes, err := f.svc.Enroll(ctx, nil)
		require.NoError(t, err)

		rc, err := f.svc.Checkout(ctx, quotes)
		assert.ErrorIs(t, err, ErrNotBound)
		assert.Equal(t, MsgActivation, UserMessage(err))
		assert.True(t, rc.Payment.Succeeded())
	})

	t.Run("not paid", func(t *testing.T) {
		f := newFixture(t, simulator.Options{})
		f.backend.setStatuses("unpaid", QuoteBound)
		quotes, err := f.svc.Enroll(ctx, nil)
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, quotes)
		assert.ErrorIs(t, err, ErrNotPaid)
		assert.Nil(t, f.backend.body("bind"))
	})
}

func TestLoadApplicants_PrefillsFirstCard(t *testing.T) {
	f := newFixture(t, simulator.Options{})
	ctx := context.Background()

	a, err := f.svc.LoadApplicants(ctx)
	require.NoError(t, err)
	require.Len(t, a.Cards, 2)

	first, second := a.Cards[0].CAN, a.Cards[1].CAN
	assert.True(t, a.Selected[first])
	assert.False(t, a.Selected[second])
	assert.Equal(t, a.User.FirstName, a.Forms[first].FirstName)
	assert.Equal(t, a.User.Email, a.Forms[first].Email)
	assert.Empty(t, a.Forms[second].FirstName)
	assert.False(t, a.Valid())

	date, err := f.svc.PickBirthDate(ctx, a, first)
	require.NoError(t, err)
	assert.Equal(t, "2000-06-01", date)
	assert.True(t, a.Valid())

	a.Toggle(second)
	assert.False(t, a.Valid())
	assert.Len(t, a.Details(), 2)

	_, err = f.svc.PickBirthDate(ctx, a, "nope")
	assert.ErrorIs(t, err, ErrUnknownCard)
}

func TestLoadApplicants_UserFailure(t *testing.T) {
	f := newFixture(t, simulator.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.LoadApplicants(ctx)
	assert.Equal(t, MsgUserData, UserMessage(err))
}

func TestDashboard_GroupsPoliciesByCard(t *testing.T) {
	f := newFixture(t, simulator.Options{})
	f.backend.setPolicies(`{"data":[
		{"id":1,"policy_number":"COC-1","start_date":"2024-01-15","end_date":"2025-01-15",
		 "documents":[{"download_url":"https://docs.example.com/1.pdf"}],
		 "quote_data":{"data":{"beep_cards":[
			{"beep_card_number":6378059999999999,"applicant_first_name":"Maria","applicant_last_name":"Santos"},
			{"beep_card_number":"6378051111111111","applicant_first_name":"Juan","applicant_last_name":"Dela Cruz"}
		 ]}}},
		{"id":"p-2","policy_number":"COC-2","start_date":"2024-02-01T00:00:00Z","end_date":"",
		 "quote_data":{"data":{"beep_cards":[
			{"beep_card_number":"6378051111111111","applicant_first_name":"Juan"},
			{"beep_card_number":null}
		 ]}}}
	]}`)

	ctx := context.Background()
	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardTitle, f.sim.Title())
	require.Len(t, d.Cards, 2)

	juan := d.Cards[0]
	assert.Equal(t, "637805 1111111111", juan.CardNumber)
	assert.Equal(t, "Juan Dela Cruz", juan.InsuredName)
	require.Len(t, juan.COCs, 2)
	assert.Equal(t, COC{
		Number:      "COC-1",
		Period:      "01/15/2024 - 01/15/2025",
		DownloadURL: "https://docs.example.com/1.pdf",
		PolicyID:    "1",
	}, juan.COCs[0])
	assert.Equal(t, "02/01/2024 - ", juan.COCs[1].Period)
	assert.Empty(t, juan.COCs[1].DownloadURL)

	maria := d.Cards[1]
	assert.Equal(t, "6378059999999999", maria.RawCardNumber)
	assert.Equal(t, "Maria Santos", maria.InsuredName)

	_, err = f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.backend.policyCalls.Load())

	f.svc.RefreshPolicies(d.User.Email)
	_, err = f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.backend.policyCalls.Load())
}

func TestDashboard_PolicyFailure(t *testing.T) {
	f := newFixture(t, simulator.Options{})
	f.backend.setPolicies(`not json`)

	_, err := f.svc.Dashboard(context.Background())
	assert.Equal(t, MsgPolicies, UserMessage(err))
}

func TestWatch_ReadyRegistersBackAndTitle(t *testing.T) {
	f := newFixture(t, simulator.Options{})

	app := f.svc.Watch("")
	defer app.Close()

	require.Eventually(t, func() bool {
		return f.sim.Title() == DefaultAppName
	}, time.Second, 5*time.Millisecond)
	assert.True(t, app.Ready())

	assert.False(t, app.SetTitle("Other", false))
	assert.Equal(t, DefaultAppName, f.sim.Title())
	assert.True(t, app.SetTitle("Other", true))
	assert.Equal(t, "Other", f.sim.Title())

	assert.Equal(t, 1, f.sim.TriggerBackPressed())
	assert.True(t, f.sim.MiniAppClosed())
}

func TestWatch_FallbackMarksReady(t *testing.T) {
	f := newFixture(t, simulator.Options{ReadyDelay: time.Hour})
	f.svc.opts.ReadyFallback = 10 * time.Millisecond

	app := f.svc.Watch("Protect")
	defer app.Close()

	assert.False(t, app.SetTitle("early", false))
	require.Eventually(t, func() bool {
		return f.sim.Title() == "Protect"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, app.Ready())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "PHP 6197.49", FormatCurrency(6197.49))
	assert.Equal(t, "123456", FormatCardNumber("123456"))
	assert.Equal(t, "123456 7", FormatCardNumber("1234567"))
	assert.Equal(t, "", FormatPolicyDate(" "))
	assert.Equal(t, "someday", FormatPolicyDate("someday"))
	assert.Equal(t, "12/31/2024", FormatPolicyDate("2024-12-31 10:00:00"))
	assert.Equal(t, "Juan", InsuredName("Juan", ""))
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, MsgUnexpected, UserMessage(assert.AnError))
}
