package bingx

import (
	"errors"
	"fmt"
)

var errUnexpectedPayload = errors.New("unexpected response payload")

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

type PositionSide string

const (
	PosLong  PositionSide = "LONG"
	PosShort PositionSide = "SHORT"
)

// OrderRequest 市价单参数，timestamp 和 signature 由 Client 在发送前注入
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	PositionSide  PositionSide
	Quantity      string // 已按精度格式化
	ReduceOnly    bool
	ClientOrderID string
}

type OrderResult struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	ClientOrderID string `json:"clientOrderID"`
}

// Position 持仓信息，数值字段交易所返回字符串
type Position struct {
	Symbol       string `json:"symbol"`
	PositionSide string `json:"positionSide"`
	PositionAmt  string `json:"positionAmt"`
	AvgPrice     string `json:"avgPrice"`
	UnrealizedPL string `json:"unrealizedProfit"`
}

// APIError 交易所返回的业务错误（HTTP 200 但 code != 0）
// 市价单不具备幂等性，这类错误一律不自动重试
type APIError struct {
	Code int64
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bingx api error: code=%d msg=%s", e.Code, e.Msg)
}

// NetworkError 网络层失败（超时、连接被重置）
// 下单请求遇到这类错误时结果未知，调用方只能记录，不能重试
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("bingx network error on %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
