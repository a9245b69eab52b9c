package bingx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func jsonDecode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := NewClient(ts.URL, "test-api-key", "test-secret")
	return c, ts
}

func TestClient_LastPrice(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != endpointTicker {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// 公开接口不应带密钥头
		if r.Header.Get("X-BX-APIKEY") != "" {
			t.Error("public endpoint should not carry the api key header")
		}
		w.Write([]byte(`{"code":0,"msg":"","data":{"symbol":"ETH-USDT","lastPrice":"2000.5"}}`))
	})
	defer ts.Close()

	price, err := c.LastPrice(context.Background(), "ETH-USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2000.5 {
		t.Fatalf("price = %v, want 2000.5", price)
	}
}

func TestClient_LastPrice_ArrayPayload(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"msg":"","data":[{"symbol":"BTC-USDT","lastPrice":"60000"},{"symbol":"ETH-USDT","lastPrice":"1999.9"}]}`))
	})
	defer ts.Close()

	price, err := c.LastPrice(context.Background(), "ETH-USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 1999.9 {
		t.Fatalf("price = %v, want 1999.9", price)
	}
}

// 签名请求必须带时间戳、签名和密钥头，且签名覆盖除它之外的全部参数
func TestClient_SignedRequestCarriesSignature(t *testing.T) {
	var seen url.Values
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query()
		if r.Header.Get("X-BX-APIKEY") != "test-api-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"code":0,"msg":"","data":{"balance":{"asset":"USDT","availableMargin":"1000"}}}`))
	})
	defer ts.Close()

	balance, err := c.AvailableBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 1000 {
		t.Fatalf("balance = %v, want 1000", balance)
	}

	ts2 := seen.Get("timestamp")
	sig := seen.Get("signature")
	if ts2 == "" || sig == "" {
		t.Fatalf("timestamp/signature missing from request: %v", seen)
	}
	// 服务端视角验签
	want := NewSigner("test-secret").Sign(map[string]string{"timestamp": ts2})
	if sig != want {
		t.Fatalf("signature mismatch: got %s want %s", sig, want)
	}
}

// signature 必须是 query 里最后一个参数
func TestClient_SignatureIsLastParam(t *testing.T) {
	var rawQuery string
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"code":0,"msg":"","data":[]}`))
	})
	defer ts.Close()

	if _, err := c.Positions(context.Background(), "ETH-USDT"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx := strings.Index(rawQuery, "signature=")
	if idx < 0 {
		t.Fatalf("no signature in query: %s", rawQuery)
	}
	if strings.Contains(rawQuery[idx:], "&") {
		t.Fatalf("signature is not the last parameter: %s", rawQuery)
	}
}

func TestClient_APIErrorNotRetried(t *testing.T) {
	calls := 0
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"code":100413,"msg":"Incorrect apiKey","data":null}`))
	})
	defer ts.Close()

	_, err := c.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "ETH-USDT", Side: Buy, PositionSide: PosLong, Quantity: "0.2",
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Code != 100413 {
		t.Fatalf("code = %d, want 100413", apiErr.Code)
	}
	if calls != 1 {
		t.Fatalf("order call retried %d times, market orders must never be retried", calls)
	}
}

func TestClient_NetworkErrorDistinct(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	ts.Close() // 直接关掉，制造连接失败

	_, err := c.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "ETH-USDT", Side: Buy, PositionSide: PosLong, Quantity: "0.2",
	})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("want NetworkError, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatal("network failure must not look like an api error")
	}
}

func TestClient_PlaceOrderParams(t *testing.T) {
	var body map[string]interface{}
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("order should be POST, got %s", r.Method)
		}
		if err := jsonDecode(r, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"code":0,"msg":"","data":{"order":{"orderId":123456,"symbol":"ETH-USDT"}}}`))
	})
	defer ts.Close()

	res, err := c.PlaceOrder(context.Background(), OrderRequest{
		Symbol:       "ETH-USDT",
		Side:         Sell,
		PositionSide: PosShort,
		Quantity:     "0.5",
		ReduceOnly:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OrderID != 123456 {
		t.Fatalf("orderId = %d, want 123456", res.OrderID)
	}
	if body["type"] != "MARKET" {
		t.Errorf("type = %v, want MARKET", body["type"])
	}
	if body["side"] != "SELL" || body["positionSide"] != "SHORT" {
		t.Errorf("side/positionSide = %v/%v", body["side"], body["positionSide"])
	}
	if body["reduceOnly"] != "true" {
		t.Errorf("reduceOnly = %v, want true", body["reduceOnly"])
	}
	if body["signature"] == nil || body["timestamp"] == nil {
		t.Error("signed POST must carry timestamp and signature")
	}
}
