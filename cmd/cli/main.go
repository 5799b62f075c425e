// Command cli is a small interactive client for the Chord DHT client API
// (spec §6.1), mirroring original_source/cli/cli.py's command set against
// a single node's HTTP address rather than that script's physical/logical
// node-spawning harness, which belongs to the simulation environment the
// spec's Non-goals explicitly exclude from this repository.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type client struct {
	nodeURL string
	http    *http.Client
}

func newClient(nodeURL string) *client {
	return &client{nodeURL: nodeURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *client) send(path string, body any) (map[string]any, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.http.Post(c.nodeURL+"/api/"+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if msg, ok := parsed["error"]; ok {
		return nil, fmt.Errorf("%v", msg)
	}
	return parsed, nil
}

func (c *client) modify(operation, key, value string) (any, error) {
	req := map[string]any{"operation": operation, "key": key}
	if operation == "insert" {
		req["value"] = value
	}
	resp, err := c.send("modify", req)
	if err != nil {
		return nil, err
	}
	return resp["response"], nil
}

func (c *client) query(key string) (any, error) {
	resp, err := c.send("query", map[string]any{"key": key})
	if err != nil {
		return nil, err
	}
	return resp["response"], nil
}

func (c *client) depart() error {
	_, err := c.send("depart", map[string]any{})
	return err
}

func (c *client) overlay() ([]any, error) {
	buf, err := json.Marshal(map[string]any{})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Post(c.nodeURL+"/api/overlay", "application/json", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var nodes []any
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode overlay response: %w", err)
	}
	return nodes, nil
}

func main() {
	nodeURL := flag.String("node", "", "base URL of the node to talk to, e.g. http://localhost:8080")
	flag.Parse()
	if *nodeURL == "" {
		fmt.Fprintln(os.Stderr, "usage: cli -node http://<host>:<port>")
		os.Exit(1)
	}

	c := newClient(strings.TrimRight(*nodeURL, "/"))
	fmt.Println("Chord DHT Client. Type 'help' for available commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\033[96mChord> \033[0m")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		cmd := strings.ToLower(args[0])

		switch cmd {
		case "insert":
			if len(args) < 3 {
				fmt.Println("Usage: insert <key> <value>")
				continue
			}
			resp, err := c.modify("insert", args[1], args[2])
			printResult(resp, err)
		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <key>")
				continue
			}
			resp, err := c.modify("delete", args[1], "")
			printResult(resp, err)
		case "query":
			if len(args) < 2 {
				fmt.Println("Usage: query <key>")
				continue
			}
			resp, err := c.query(args[1])
			printResult(resp, err)
		case "depart":
			if err := c.depart(); err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Println("departed")
		case "overlay":
			nodes, err := c.overlay()
			if err != nil {
				fmt.Println("Error:", err)
				continue
			}
			fmt.Println("Overlay (Chord Ring Topology):")
			for _, raw := range nodes {
				node, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				fmt.Printf("Node %v\n", node["url"])
				fmt.Printf("  Predecessor %v\n", node["predecessor_url"])
				fmt.Printf("  Successor %v\n", node["successor_url"])
				fmt.Printf("  Key Range %v -- %v\n", node["keys_start"], node["keys_end"])
			}
		case "exit":
			return
		case "help":
			printHelp()
		default:
			fmt.Println("Unknown command. Type 'help' for available commands.")
		}
	}
}

func printResult(resp any, err error) {
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(resp)
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println(" insert <key> <value>  - Insert or update a <key,value> pair")
	fmt.Println(" delete <key>          - Delete the specified key")
	fmt.Println(" query <key>           - Query for the specified key (use '*' for all keys)")
	fmt.Println(" depart                - Gracefully depart from the DHT")
	fmt.Println(" overlay               - Print the network topology")
	fmt.Println(" exit                  - Exit the CLI")
	fmt.Println(" help                  - Show this help message")
}
