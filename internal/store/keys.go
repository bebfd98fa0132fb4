package store

// Key formats live here, and only here, per spec.md's "string-keyed state
// store -> typed repository layer" design note. Nothing outside this
// package ever builds one of these strings; every access goes through a
// typed Store method instead.
const (
	keyOrderPrefix       = "order:"
	keyOrdersAll         = "orders:all"
	keySymbolOrders      = "symbol:%s:orders"
	keyAccountOrders     = "account:%s:orders"
	keyAccountPositions  = "account:%s:positions"
	keyAccountTxns       = "account:%s:transactions"
	keyTradePrefix       = "trade:"
	keyTradesAll         = "trades:all"
	keyInternalPrefix    = "internal:"
)

func orderKey(id string) string   { return keyOrderPrefix + id }
func tradeKey(id string) string   { return keyTradePrefix + id }
func internalKey(k string) string { return keyInternalPrefix + k }
