package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"recycless/cmd/internal/passphrase"
	"recycless/crypto"
)

const keyPassEnv = "RECYCLESS_KEY_PASS"

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var networkName = defaultNetwork()

var httpClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "generate-key":
		return runGenerateKey(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	}
	if cmd, ok := recycleCommands[args[0]]; ok {
		return cmd(args[1:], stdout, stderr)
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
	fmt.Fprintln(stderr, usage())
	return 1
}

func usage() string {
	return strings.TrimSpace(`Usage:
  recycless-cli [--rpc URL] [--network NAME] <command> [flags]

Keys:
  generate-key       Create a new key file (hex, or keystore with --keystore)
  address            Print the address of a key file

Calls (signed with --key):
  create             Create the contract with the signer as admin
  set-reward-config  Set reward asset and per-bottle rate (admin)
  set-station        Grant or revoke the station role (admin)
  opt-in             Opt the contract account in to the reward asset
  add-bottle         Record one bottle for the signer
  add-bottles        Record bottles for the signing station
  add-bottles-for    Record bottles for a user (station)

Queries:
  bottle-count       Global bottle count
  user-count         Bottles recorded for --account
  config             Contract configuration
  is-station         Station flag for --account
  nonce              Next call nonce for --account
  balance            Asset ledger balance for --asset and --account
  transfers          Asset ledger transfer history for --account [--limit]`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080/rpc"
}

func defaultNetwork() string {
	if v := strings.TrimSpace(os.Getenv("RECYCLESS_NETWORK")); v != "" {
		return v
	}
	return "recycless-local"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--network":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				networkName = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--network="):
			networkName = strings.TrimPrefix(arg, "--network=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func callRPC(method string, params []interface{}) (json.RawMessage, *rpcError, error) {
	if params == nil {
		params = []interface{}{}
	}
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := httpClient.Post(rpcEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response from node (HTTP %d)", resp.StatusCode)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err == nil {
		result = pretty.Bytes()
	}
	if _, err := w.Write(result); err == nil {
		if result[len(result)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}

// loadPrivateKey reads a hex key file or, when the file holds JSON, a
// keystore unlocked with RECYCLESS_KEY_PASS or an interactive prompt.
func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		pass, err := passphrase.NewSource(keyPassEnv, "key").Get()
		if err != nil {
			return nil, err
		}
		return crypto.LoadFromKeystore(path, pass)
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(string(trimmed), "0x"))
	if err != nil {
		return nil, fmt.Errorf("key file %s is neither hex nor a keystore: %w", path, err)
	}
	return crypto.PrivateKeyFromBytes(decoded)
}
