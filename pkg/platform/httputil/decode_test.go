package httputil_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesto/internal/claims/handler"
	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
)

const issuerDID = "did:attesto:employer:acme"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(body))
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDecodeJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes a decision with its keystore", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, ok := httputil.DecodeJSON[handler.DecideRequest](w,
			post(`{"status":"ACCEPTED","keystore":{"did":"`+issuerDID+`","priv_key":"00ff"}}`), discard, ctx, "req-1")

		require.True(t, ok)
		assert.Equal(t, "ACCEPTED", req.Status)
		assert.Equal(t, models.Keystore{DID: issuerDID, PrivateKey: "00ff"}, req.ToKeystore())
	})

	cases := []struct {
		name        string
		body        string
		description string
	}{
		{"malformed JSON", `{"status":`, "invalid request body"},
		{"empty body", ``, "request body is required"},
		{"unknown top-level field", `{"status":"REJECTED","reason":"late"}`, `unknown field "reason"`},
		{"unknown keystore field", `{"status":"ACCEPTED","keystore":{"did":"` + issuerDID + `","seed":"00"}}`, `unknown field "seed"`},
		{"wrong field type", `{"status":1}`, `field "status" has the wrong type`},
		{"trailing object", `{"status":"REJECTED"}{"status":"ACCEPTED"}`, "single JSON object"},
	}
	for _, tc := range cases {
		t.Run(tc.name+" returns 400", func(t *testing.T) {
			w := httptest.NewRecorder()
			req, ok := httputil.DecodeJSON[handler.DecideRequest](w, post(tc.body), discard, ctx, "req-1")

			assert.False(t, ok)
			assert.Nil(t, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := errorBody(t, w)
			assert.Equal(t, "bad_request", resp["error"])
			assert.Contains(t, resp["error_description"], tc.description)
		})
	}

	t.Run("body past the reader limit returns 413", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := post(`{"status":"REJECTED","keystore":{"did":"` + issuerDID + `","priv_key":"00ff"}}`)
		r.Body = http.MaxBytesReader(w, r.Body, 16)

		_, ok := httputil.DecodeJSON[handler.DecideRequest](w, r, discard, ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "payload_too_large", errorBody(t, w)["error"])
	})
}

func TestDecodeAndPrepareCreateClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("sanitizes and normalizes before validating", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := `{"issuer":"  ` + issuerDID + ` ","title":" Backend engineer ","career_type":" vc ","content":{"years":3}}`

		req, ok := httputil.DecodeAndPrepare[handler.CreateClaimRequest](w, post(body), discard, ctx, "req-1")

		require.True(t, ok, w.Body.String())
		assert.Equal(t, issuerDID, req.Issuer)
		assert.Equal(t, "Backend engineer", req.Title)
		assert.Equal(t, "VC", req.CareerType)
		assert.Equal(t, models.Content{"years": float64(3)}, req.Content)
	})

	invalid := map[string]string{
		"issuer is not a DID":    `{"issuer":"acme","title":"dev","career_type":"VC","content":{"years":3}}`,
		"blank title":            `{"issuer":"` + issuerDID + `","title":"   ","career_type":"VC","content":{"years":3}}`,
		"unknown career type":    `{"issuer":"` + issuerDID + `","title":"dev","career_type":"NFT","content":{"years":3}}`,
		"reserved content key":   `{"issuer":"` + issuerDID + `","title":"dev","career_type":"VC","content":{"_career":"x"}}`,
		"imprecise content int":  `{"issuer":"` + issuerDID + `","title":"dev","career_type":"VC","content":{"employee_no":12345678901234567891}}`,
		"nested content value":   `{"issuer":"` + issuerDID + `","title":"dev","career_type":"VC","content":{"where":{"city":"Seoul"}}}`,
		"content is missing":     `{"issuer":"` + issuerDID + `","title":"dev","career_type":"VC"}`,
		"career type is missing": `{"issuer":"` + issuerDID + `","title":"dev","content":{"years":3}}`,
	}
	for name, body := range invalid {
		t.Run(name+" is a validation error", func(t *testing.T) {
			w := httptest.NewRecorder()
			req, ok := httputil.DecodeAndPrepare[handler.CreateClaimRequest](w, post(body), discard, ctx, "req-1")

			assert.False(t, ok)
			assert.Nil(t, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", errorBody(t, w)["error"])
		})
	}
}

func TestDecodeAndPrepareDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("keystore is optional", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, ok := httputil.DecodeAndPrepare[handler.DecideRequest](w, post(`{"status":" REJECTED "}`), discard, ctx, "req-1")

		require.True(t, ok, w.Body.String())
		assert.Equal(t, "REJECTED", req.Status)
		assert.Equal(t, models.Keystore{}, req.ToKeystore())
	})

	t.Run("non-terminal status keeps its bad request code", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := httputil.DecodeAndPrepare[handler.DecideRequest](w, post(`{"status":"PENDING"}`), discard, ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", errorBody(t, w)["error"])
	})

	t.Run("non-hex private key is a validation error", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := `{"status":"ACCEPTED","keystore":{"did":"` + issuerDID + `","priv_key":"not-hex"}}`
		_, ok := httputil.DecodeAndPrepare[handler.DecideRequest](w, post(body), discard, ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, "validation_error", errorBody(t, w)["error"])
	})
}

// seniority is a request whose Validate returns a plain error.
type seniority struct {
	Years int `json:"years"`
}

func (s *seniority) Validate() error {
	if s.Years < 0 {
		return errors.New("years must not be negative")
	}
	return nil
}

func TestPrepareRequest(t *testing.T) {
	t.Run("plain validation errors become validation failures", func(t *testing.T) {
		err := httputil.PrepareRequest(&seniority{Years: -1})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "years must not be negative")
	})

	t.Run("domain codes are kept", func(t *testing.T) {
		err := httputil.PrepareRequest(&handler.DecideRequest{Status: "PENDING"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "got %v", err)
	})

	t.Run("types without preparation steps pass", func(t *testing.T) {
		assert.NoError(t, httputil.PrepareRequest(&struct{ Years int }{Years: 3}))
	})
}
