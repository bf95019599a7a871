package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
)

type response struct {
	Status string `json:"status"`
	Value  string `json:"value"`
	State  string `json:"state"`
	Error  string `json:"error"`
}

func call(method, base, key, value string) (int, response) {
	var (
		resp *http.Response
		err  error
	)

	switch method {
	case "put":
		fmt.Printf("[client] PUT    key=%s value=%q → %s\n", key, value, base)
		form := url.Values{"key": {key}, "value": {value}}
		req, _ := http.NewRequest(http.MethodPut, base+"/api/string", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = http.DefaultClient.Do(req)
	case "get":
		resp, err = http.Get(base + "/api/string?key=" + url.QueryEscape(key))
	case "state":
		resp, err = http.Get(base + "/api/state?key=" + url.QueryEscape(key))
	case "delete":
		fmt.Printf("[client] DELETE key=%s → %s\n", key, base)
		req, _ := http.NewRequest(http.MethodDelete, base+"/api?key="+url.QueryEscape(key), nil)
		resp, err = http.DefaultClient.Do(req)
	default:
		log.Printf("unsupported method: %s\n", method)
		return 0, response{}
	}

	if err != nil {
		log.Println(method, "error:", err)
		return 0, response{}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var r response
	_ = json.Unmarshal(body, &r)
	return resp.StatusCode, r
}

func pause(msg string) {
	fmt.Println()
	fmt.Println(msg)
	fmt.Print("Нажми Enter, чтобы продолжить...")
	_, _ = bufio.NewReader(os.Stdin).ReadBytes('\n')
}

func show(base, key string) response {
	_, r := call("state", base, key, "")
	fmt.Printf("  %-8s → state=%-9s value=%q\n", key, r.State, r.Value)
	return r
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: demo http://localhost:8080")
		os.Exit(1)
	}

	base := os.Args[1]

	fmt.Println("=== ЗАПИСЬ ===")
	call("put", base, "name", "Alice")
	call("put", base, "age", "25")
	call("put", base, "city", "Beijing")
	call("put", base, "age", "26")
	call("put", base, "note", "")
	call("delete", base, "city", "")
	call("delete", base, "ghost", "")

	expected := map[string]response{
		"name":  {State: "found", Value: "Alice"},
		"age":   {State: "found", Value: "26"},
		"note":  {State: "found"},
		"city":  {State: "deleted"},
		"ghost": {State: "deleted"},
		"other": {State: "not found"},
	}
	keys := []string{"name", "age", "note", "city", "ghost", "other"}

	fmt.Println("\n=== СОСТОЯНИЕ ДО ПЕРЕЗАПУСКА ===")
	for _, k := range keys {
		show(base, k)
	}

	pause(`=== ТЕСТ ВОССТАНОВЛЕНИЯ ===
Убей сервер без корректного завершения (kill -9) и запусти его снова
с тем же db.wal.dir. Память будет восстановлена из WAL.`)

	fmt.Println("\n=== СОСТОЯНИЕ ПОСЛЕ ПЕРЕЗАПУСКА ===")
	mismatches := 0
	for _, k := range keys {
		got := show(base, k)
		want := expected[k]
		if got.State != want.State || got.Value != want.Value {
			mismatches++
		}
	}

	if mismatches > 0 {
		fmt.Printf("\n%d ключей не совпали после восстановления\n", mismatches)
		os.Exit(1)
	}
	fmt.Println("\nВсе ключи восстановлены из WAL")
}
