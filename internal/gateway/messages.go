package gateway

import "github.com/shopspring/decimal"

// RequestType discriminates incoming JSON lines, playing the role of the
// teacher's binary MessageType enum (_examples/saiputravu-Exchange/
// internal/net/messages.go) but over a self-describing JSON wire instead
// of a fixed-width binary header, since spec.md §6 specifies "internal
// JSON records" as the only cross-boundary format this core needs.
type RequestType string

const (
	ReqSubmitOrder  RequestType = "submit_order"
	ReqCancelOrder  RequestType = "cancel_order"
	ReqEditOrder    RequestType = "edit_order"
	ReqCreateAccount RequestType = "create_account"
	ReqGetAccount   RequestType = "get_account"
	ReqListAccounts RequestType = "list_accounts"
	ReqPostTxn      RequestType = "post_transaction"
	ReqListTxns     RequestType = "list_transactions"
	ReqListPositions RequestType = "list_positions"
	ReqListOrders   RequestType = "list_orders"
	ReqDepth        RequestType = "depth"
	ReqRiskAlerts   RequestType = "risk_alerts"
)

// Request is one decoded client line. Only the fields relevant to Type
// are populated; unused fields are simply left zero.
type Request struct {
	Type RequestType `json:"type"`

	// submit_order (spec.md §6's submit-order input shape)
	AccountID string          `json:"account_id,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	Side      string          `json:"side,omitempty"`
	OrderType string          `json:"order_type,omitempty"`
	Price     decimal.Decimal `json:"price,omitempty"`
	Quantity  int64           `json:"quantity,omitempty"`
	TIF       string          `json:"tif,omitempty"`
	Internal  bool            `json:"internal,omitempty"`

	// cancel_order / edit_order
	OrderID  string           `json:"order_id,omitempty"`
	NewPrice *decimal.Decimal `json:"new_price,omitempty"`
	NewQty   *int64           `json:"new_quantity,omitempty"`

	// create_account
	Name      string          `json:"name,omitempty"`
	Balance   decimal.Decimal `json:"balance,omitempty"`
	AcctType  string          `json:"account_type,omitempty"`
	RiskLevel string          `json:"risk_level,omitempty"`

	// post_transaction
	Amount decimal.Decimal `json:"amount,omitempty"`
	TxType string          `json:"tx_type,omitempty"`
	Desc   string          `json:"description,omitempty"`

	// list_transactions / depth
	Limit int  `json:"limit,omitempty"`
	N     int  `json:"n,omitempty"`
}

// Response is the JSON line written back for every Request. Exactly one
// of Data or Error is meaningful, mirroring the teacher's
// ExecutionReport/ErrorReport split but unified into one envelope since
// JSON doesn't need a fixed-width discriminator byte.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func ok(data any) Response  { return Response{OK: true, Data: data} }
func fail(err error) Response { return Response{OK: false, Error: err.Error()} }
