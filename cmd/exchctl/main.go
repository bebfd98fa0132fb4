// Command exchctl is the thin demo client standing in for spec.md §6's
// excluded REST/UI collaborator (SPEC_FULL.md §2), grounded on
// _examples/saiputravu-Exchange/cmd/client/client.go's flag-driven
// place/cancel/log CLI, adapted from that repo's fixed-width binary wire
// to exchanged's newline-delimited JSON protocol.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"fenrir/internal/gateway"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9201", "address of the exchanged gateway")
	action := flag.String("action", "submit", "action: submit|cancel|accounts|depth")
	accountID := flag.String("account", "", "account id")
	symbol := flag.String("symbol", "AAPL", "symbol")
	side := flag.String("side", "buy", "buy|sell")
	orderType := flag.String("type", "limit", "limit|market")
	price := flag.Float64("price", 100.0, "limit price")
	qty := flag.Int64("qty", 10, "quantity")
	tif := flag.String("tif", "gtc", "gtc|ioc|fok|day")
	orderID := flag.String("order", "", "order id (for cancel)")
	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("dial %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)

	var req gateway.Request
	switch strings.ToLower(*action) {
	case "submit":
		req = gateway.Request{
			Type: gateway.ReqSubmitOrder, AccountID: *accountID, Symbol: *symbol,
			Side: *side, OrderType: *orderType, Price: decimal.NewFromFloat(*price),
			Quantity: *qty, TIF: *tif,
		}
	case "cancel":
		if *orderID == "" {
			log.Fatal("-order is required for cancel")
		}
		req = gateway.Request{Type: gateway.ReqCancelOrder, OrderID: *orderID}
	case "accounts":
		req = gateway.Request{Type: gateway.ReqListAccounts}
	case "depth":
		req = gateway.Request{Type: gateway.ReqDepth, Symbol: *symbol, Side: *side, N: 10}
	default:
		log.Fatalf("unknown action %q", *action)
	}

	if err := enc.Encode(req); err != nil {
		log.Fatalf("send request: %v", err)
	}
	if !scanner.Scan() {
		log.Fatal("no response from server")
	}

	var resp gateway.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		log.Fatalf("decode response: %v", err)
	}
	if !resp.OK {
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(resp.Data, "", "  ")
	fmt.Println(string(out))
}
