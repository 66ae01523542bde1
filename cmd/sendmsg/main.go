package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendmsg sends one envelope through the kernel and prints whatever comes
// back before the wait expires. With --to the payload is routed
// point-to-point; without it the kernel broadcasts to every registered
// node except this client.
func main() {
	uri := flag.String("kernel", "ws://127.0.0.1:8080/api/v1/ws", "kernel websocket URI")
	to := flag.String("to", "", "target node id (empty = broadcast)")
	msgType := flag.String("type", "ping", "payload type: ping|query_artifact|list_artifacts|list_collections|get_presigned_asset")
	artifactID := flag.String("artifact-id", "", "artifact id for query_artifact")
	assetID := flag.String("asset-id", "", "asset id for get_presigned_asset")
	text := flag.String("text", "", "title filter for list_artifacts")
	registerAs := flag.String("register-as", "", "register this client under a node id so node replies reach it")
	wait := flag.Duration("wait", 3*time.Second, "how long to wait for replies")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*uri, nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if *registerAs != "" {
		reg := map[string]any{"type": "register_node", "node_id": *registerAs, "domain": "client"}
		if err := conn.WriteJSON(reg); err != nil {
			log.Fatalf("register failed: %v", err)
		}
	}

	requestID := uuid.NewString()
	payload := map[string]any{"type": *msgType, "request_id": requestID}
	switch *msgType {
	case "query_artifact":
		payload["q"] = map[string]any{"id": *artifactID}
	case "get_presigned_asset":
		payload["q"] = map[string]any{"asset_id": *assetID}
	case "list_artifacts":
		if *text != "" {
			payload["q"] = map[string]any{"text": *text}
		}
	}

	msg := map[string]any{"payload": payload}
	if *to != "" {
		msg["to"] = *to
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Fatalf("send failed: %v", err)
	}
	log.Printf("sent type=%s to=%q request_id=%s", *msgType, *to, requestID)

	deadline := time.Now().Add(*wait)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var pretty map[string]any
		if json.Unmarshal(raw, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(raw))
		}
	}
}
