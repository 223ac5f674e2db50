package holidayapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/domain"
)

const xmlTwoItems = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<response>
  <header><resultCode>00</resultCode><resultMsg>NORMAL SERVICE.</resultMsg></header>
  <body>
    <items>
      <item><dateKind>01</dateKind><dateName>1월1일</dateName><isHoliday>Y</isHoliday><locdate>20250101</locdate><seq>1</seq></item>
      <item><dateKind>01</dateKind><dateName>제헌절</dateName><isHoliday>N</isHoliday><locdate>20250717</locdate><seq>1</seq></item>
    </items>
    <numOfRows>100</numOfRows><pageNo>1</pageNo><totalCount>2</totalCount>
  </body>
</response>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test%2Bkey", zap.NewNop())
}

func TestFetchYear_XML(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test+key", q.Get("serviceKey"))
		assert.Equal(t, "2025", q.Get("solYear"))
		assert.Equal(t, "100", q.Get("numOfRows"))
		assert.Equal(t, "1", q.Get("pageNo"))
		assert.Empty(t, q.Get("solMonth"))
		w.Write([]byte(xmlTwoItems))
	})

	items, err := c.FetchYear(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, []domain.RawHoliday{
		{IsHoliday: true, Locdate: "20250101", Name: "1월1일"},
		{IsHoliday: false, Locdate: "20250717", Name: "제헌절"},
	}, items)
}

func TestFetchMonth_PadsMonth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "03", r.URL.Query().Get("solMonth"))
		w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items></items><totalCount>0</totalCount></body></response>`))
	})

	items, err := c.FetchMonth(context.Background(), 2025, 3)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = c.FetchMonth(context.Background(), 2025, 13)
	assert.Error(t, err)
}

func TestFetch_Pagination(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("pageNo") {
		case "1":
			w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items>
<item><dateName>A</dateName><isHoliday>Y</isHoliday><locdate>20250101</locdate></item>
</items><totalCount>2</totalCount></body></response>`))
		default:
			w.Write([]byte(`<response><header><resultCode>00</resultCode></header><body><items>
<item><dateName>B</dateName><isHoliday>Y</isHoliday><locdate>20250301</locdate></item>
</items><totalCount>2</totalCount></body></response>`))
		}
	})
	c.SetPageSize(1)

	items, err := c.FetchYear(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[1].Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_ResultCodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><header><resultCode>30</resultCode><resultMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</resultMsg></header></response>`))
	})

	_, err := c.FetchYear(context.Background(), 2025)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "30", apiErr.Code)
	assert.Equal(t, "SERVICE_KEY_IS_NOT_REGISTERED_ERROR", apiErr.Message)
}

func TestFetch_GatewayEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg><returnAuthMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</returnAuthMsg><returnReasonCode>30</returnReasonCode></cmmMsgHeader></OpenAPI_ServiceResponse>`))
	})

	_, err := c.FetchYear(context.Background(), 2025)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "30", apiErr.Code)
	assert.Equal(t, "SERVICE_KEY_IS_NOT_REGISTERED_ERROR", apiErr.Message)
}

func TestFetch_UnexpectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.FetchYear(context.Background(), 2025)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetch_Malformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not xml at all`))
	})

	_, err := c.FetchYear(context.Background(), 2025)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetch_NotConfigured(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	for _, c := range []*Client{
		NewClient(srv.URL, "", nil),
		NewClient(srv.URL, PlaceholderKey, nil),
		NewClient("", "real-key", nil),
	} {
		assert.False(t, c.IsConfigured())
		_, err := c.FetchYear(context.Background(), 2025)
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
	assert.False(t, called)
}

func TestFetch_JSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []domain.RawHoliday
	}{
		{
			name: "array",
			body: `{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL SERVICE."},"body":{"items":{"item":[
				{"dateKind":"01","dateName":"삼일절","isHoliday":"Y","locdate":20250301,"seq":1},
				{"dateKind":"01","dateName":"어린이날","isHoliday":"Y","locdate":"20250505","seq":1}
			]},"numOfRows":100,"pageNo":1,"totalCount":2}}}`,
			want: []domain.RawHoliday{
				{IsHoliday: true, Locdate: "20250301", Name: "삼일절"},
				{IsHoliday: true, Locdate: "20250505", Name: "어린이날"},
			},
		},
		{
			name: "single object",
			body: `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":{"dateName":"성탄절","isHoliday":"Y","locdate":20251225}},"totalCount":1}}}`,
			want: []domain.RawHoliday{{IsHoliday: true, Locdate: "20251225", Name: "성탄절"}},
		},
		{
			name: "empty items string",
			body: `{"response":{"header":{"resultCode":"00"},"body":{"items":"","totalCount":0}}}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "json", r.URL.Query().Get("_type"))
				w.Write([]byte(tt.body))
			})
			c.SetFormat(FormatJSON)

			items, err := c.FetchYear(context.Background(), 2025)
			require.NoError(t, err)
			assert.Equal(t, tt.want, items)
		})
	}
}

func TestFetch_JSONResultCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"header":{"resultCode":"22","resultMsg":"LIMITED_NUMBER_OF_SERVICE_REQUESTS_EXCEEDS_ERROR"}}}`))
	})
	c.SetFormat(FormatJSON)

	_, err := c.FetchYear(context.Background(), 2025)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "22", apiErr.Code)
}

func TestCircuitBreaker_Opens(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 7; i++ {
		_, err := c.FetchYear(context.Background(), 2025)
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 6 {
			<-r.Context().Done()
			return
		}
		w.Write([]byte(xmlTwoItems))
	})

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.FetchYear(ctx, 2025)
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchYear(ctx, 2025)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))

	items, err := c.FetchYear(context.Background(), 2025)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(7), atomic.LoadInt32(&calls))
}
