//go:build integration

package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/internal/integrationtest"
	"github.com/go-petr/fund-transfer/internal/integrationtest/helpers"
	"github.com/go-petr/fund-transfer/pkg/jsonresponse"
)

type accountResponse struct {
	Data struct {
		Account domain.Account `json:"account"`
	} `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestCreateAccountAPI(t *testing.T) {
	server := integrationtest.SetupServer(t)

	testCases := []struct {
		name           string
		requestBody    string
		wantStatusCode int
		wantAccount    domain.Account
		wantErrorCode  string
	}{
		{
			name:           "OK",
			requestBody:    `{"owner":"alice","balance":"100.5"}`,
			wantStatusCode: http.StatusCreated,
			wantAccount: domain.Account{
				Owner:     "alice",
				Balance:   decimal.RequireFromString("100.5"),
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			},
		},
		{
			name:           "ZeroBalance",
			requestBody:    `{"owner":"bob"}`,
			wantStatusCode: http.StatusCreated,
			wantAccount: domain.Account{
				Owner:     "bob",
				Balance:   decimal.Zero,
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			},
		},
		{
			name:           "NegativeBalance",
			requestBody:    `{"owner":"carol","balance":"-1"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrorCode:  jsonresponse.CodeInvalidRequest,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewBufferString(tc.requestBody))
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("Status code: got %v, want %v", w.Code, tc.wantStatusCode)
			}

			var res accountResponse
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if tc.wantErrorCode != "" {
				if res.Error.Code != tc.wantErrorCode {
					t.Errorf("res.Error.Code=%q, want %q", res.Error.Code, tc.wantErrorCode)
				}

				return
			}

			ignoreID := cmpopts.IgnoreFields(domain.Account{}, "ID")
			compareTime := cmpopts.EquateApproxTime(5 * time.Second)
			if diff := cmp.Diff(tc.wantAccount, res.Data.Account, ignoreID, compareTime); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetAccountAPI(t *testing.T) {
	server := integrationtest.SetupServer(t)

	account := helpers.SeedAccountWith1000Balance(t, server.DB)

	testCases := []struct {
		name           string
		id             int64
		wantStatusCode int
		wantErrorCode  string
	}{
		{
			name:           "OK",
			id:             account.ID,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "NotFound",
			id:             account.ID + 1000,
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  domain.ErrAccountNotFound.Code,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/accounts/%d", tc.id), nil)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("Status code: got %v, want %v", w.Code, tc.wantStatusCode)
			}

			var res accountResponse
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if tc.wantErrorCode != "" {
				if res.Error.Code != tc.wantErrorCode {
					t.Errorf("res.Error.Code=%q, want %q", res.Error.Code, tc.wantErrorCode)
				}

				return
			}

			if diff := cmp.Diff(account, res.Data.Account, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	server := integrationtest.SetupServer(t)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Status code: got %v, want %v", w.Code, http.StatusOK)
	}
}
