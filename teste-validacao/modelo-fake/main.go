package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Upstream falso para testar o gateway localmente:
//
//	MODEL_UPSTREAM_URL=http://localhost:9000 go run ./cmd/gateway
//	FAKE_DELAY=2s go run ./teste-validacao/modelo-fake
func main() {
	delay, _ := time.ParseDuration(os.Getenv("FAKE_DELAY"))

	reply := func(kind string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Messages []json.RawMessage `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"Invalid messages format"}`)
				return
			}

			time.Sleep(delay)

			fmt.Printf("Log: %s recebido (%d mensagens, auth=%v)\n", kind, len(body.Messages), r.Header.Get("Authorization") != "")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"kind":%q,"reply":"resposta fake"}`, kind)
		}
	}

	http.HandleFunc("/api/chat", reply("chat"))
	http.HandleFunc("/api/code-complete", reply("code-complete"))
	http.HandleFunc("/api/debug-analyze", reply("debug-analyze"))

	fmt.Println("Modelo fake rodando em http://localhost:9000")
	if err := http.ListenAndServe(":9000", nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
