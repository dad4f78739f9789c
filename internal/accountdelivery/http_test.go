package accountdelivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/go-petr/fund-transfer/pkg/jsonresponse"
	"github.com/go-petr/fund-transfer/pkg/moneypkg"
	"github.com/go-petr/fund-transfer/pkg/randompkg"
	"github.com/golang/mock/gomock"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := moneypkg.Register(v); err != nil {
			panic(err)
		}
	}

	os.Exit(m.Run())
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
}

func randomAccount() domain.Account {
	return domain.Account{
		ID:        randompkg.IDBetween(1, 1000),
		Owner:     randompkg.Owner(),
		Balance:   randompkg.MoneyAmountBetween(100, 1000),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreate(t *testing.T) {
	account := randomAccount()

	testCases := []struct {
		name           string
		requestBody    string
		buildStubs     func(accountService *MockService)
		wantStatusCode int
		wantErrorCode  string
	}{
		{
			name:        "OK",
			requestBody: `{"owner":"` + account.Owner + `","balance":"` + account.Balance.String() + `"}`,
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ any, arg domain.CreateAccountParams) (domain.Account, error) {
						if arg.Owner != account.Owner || !arg.Balance.Equal(account.Balance) {
							t.Errorf("Create called with %+v", arg)
						}
						return account, nil
					})
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:        "MissingOwner",
			requestBody: `{"balance":"10"}`,
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrorCode:  jsonresponse.CodeInvalidRequest,
		},
		{
			name:        "NegativeBalance",
			requestBody: `{"owner":"bob","balance":"-10"}`,
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrorCode:  jsonresponse.CodeInvalidRequest,
		},
		{
			name:        "InternalServerError",
			requestBody: `{"owner":"bob","balance":"10"}`,
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.Account{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantErrorCode:  errorspkg.ErrInternal.Code,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			accountService := NewMockService(ctrl)
			tc.buildStubs(accountService)

			server := gin.New()
			server.POST("/accounts", NewHandler(accountService).Create)

			req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(tc.requestBody))
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Fatalf("Status code: got %v, want %v, body %s", got, tc.wantStatusCode, recorder.Body)
			}

			if tc.wantStatusCode != http.StatusCreated {
				var res errorResponse
				if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
					t.Fatalf("Decoding response body error: %v", err)
				}

				if res.Error.Code != tc.wantErrorCode {
					t.Errorf("res.Error.Code=%q, want %q", res.Error.Code, tc.wantErrorCode)
				}

				return
			}

			var res response
			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if diff := cmp.Diff(account, res.Data.Account, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet(t *testing.T) {
	account := randomAccount()

	testCases := []struct {
		name           string
		url            string
		buildStubs     func(accountService *MockService)
		wantStatusCode int
		wantErrorCode  string
	}{
		{
			name: "OK",
			url:  "/accounts/" + strconv.FormatInt(account.ID, 10),
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Get(gomock.Any(), account.ID).Return(account, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "NotFound",
			url:  "/accounts/" + strconv.FormatInt(account.ID, 10),
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Get(gomock.Any(), account.ID).Return(domain.Account{}, domain.ErrAccountNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantErrorCode:  domain.ErrAccountNotFound.Code,
		},
		{
			name: "InvalidID",
			url:  "/accounts/0",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrorCode:  jsonresponse.CodeInvalidRequest,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			accountService := NewMockService(ctrl)
			tc.buildStubs(accountService)

			server := gin.New()
			server.GET("/accounts/:id", NewHandler(accountService).Get)

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tc.url, nil))

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Fatalf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			if tc.wantStatusCode == http.StatusOK {
				var res response
				if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
					t.Fatalf("Decoding response body error: %v", err)
				}

				if diff := cmp.Diff(account, res.Data.Account, cmpopts.EquateApproxTime(time.Second)); diff != "" {
					t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
				}

				return
			}

			var res errorResponse
			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Fatalf("Decoding response body error: %v", err)
			}

			if res.Error.Code != tc.wantErrorCode {
				t.Errorf("res.Error.Code=%q, want %q", res.Error.Code, tc.wantErrorCode)
			}
		})
	}
}

func TestList(t *testing.T) {
	accounts := []domain.Account{randomAccount(), randomAccount()}

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountService := NewMockService(ctrl)
	accountService.EXPECT().List(gomock.Any(), int32(2), int32(1)).Return(accounts, nil)

	server := gin.New()
	server.GET("/accounts", NewHandler(accountService).List)

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/accounts?page_id=1&page_size=2", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", recorder.Code, http.StatusOK)
	}

	var res responseAccounts
	if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
		t.Fatalf("Decoding response body error: %v", err)
	}

	if diff := cmp.Diff(accounts, res.Data.Accounts, cmpopts.EquateApproxTime(time.Second)); diff != "" {
		t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
	}

	recorder = httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/accounts?page_id=0&page_size=2", nil))

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Status code: got %v, want %v", recorder.Code, http.StatusBadRequest)
	}
}
