package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"recycless/core/types"
	"recycless/crypto"
)

type command func(args []string, stdout, stderr io.Writer) int

var recycleCommands = map[string]command{
	"create":            runCreate,
	"set-reward-config": runSetRewardConfig,
	"set-station":       runSetStation,
	"opt-in":            runOptIn,
	"add-bottle":        runAddBottle,
	"add-bottles":       runAddBottles,
	"add-bottles-for":   runAddBottlesFor,
	"bottle-count":      runBottleCount,
	"user-count":        runUserCount,
	"config":            runConfig,
	"is-station":        runIsStation,
	"nonce":             runNonce,
	"balance":           runBalance,
	"transfers":         runTransfers,
}

var rpcMethods = map[types.Method]string{
	types.MethodCreate:           "recycle_create",
	types.MethodSetRewardConfig:  "recycle_setRewardConfig",
	types.MethodSetStation:       "recycle_setStation",
	types.MethodOptInRewardAsset: "recycle_optInRewardAsset",
	types.MethodAddBottle:        "recycle_addBottle",
	types.MethodAddBottles:       "recycle_addBottles",
	types.MethodAddBottlesFor:    "recycle_addBottlesFor",
}

// submitCall fetches the signer's nonce, signs the call and posts it.
func submitCall(keyFile string, method types.Method, args interface{}, stdout, stderr io.Writer) int {
	key, err := loadPrivateKey(keyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading key: %v\n", err)
		return 1
	}
	signer := key.PubKey().Address().String()

	result, rpcErr, err := callRPC("recycle_nonce", []interface{}{signer})
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	var nonce types.U64
	if err := json.Unmarshal(result, &nonce); err != nil {
		fmt.Fprintf(stderr, "Error: unexpected nonce response %s\n", result)
		return 1
	}

	call := &types.Call{Network: networkName, Method: method, Nonce: uint64(nonce)}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			fmt.Fprintf(stderr, "Error encoding arguments: %v\n", err)
			return 1
		}
		call.Args = raw
	}
	if err := call.Sign(key.PrivateKey); err != nil {
		fmt.Fprintf(stderr, "Error signing call: %v\n", err)
		return 1
	}
	result, rpcErr, err = callRPC(rpcMethods[method], []interface{}{call})
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func query(method string, params []interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := callRPC(method, params)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func requireFlag(stderr io.Writer, name, value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		fmt.Fprintf(stderr, "Error: --%s is required\n", name)
		return "", false
	}
	return trimmed, true
}

// parseAmount accepts a decimal uint64, allowing underscores as separators.
func parseAmount(stderr io.Writer, name, value string) (uint64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	v, err := strconv.ParseUint(cleaned, 10, 64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --%s must be an unsigned integer\n", name)
		return 0, false
	}
	return v, true
}

func runCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create", stderr)
	keyFile := fs.String("key", "wallet.key", "signer key file")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return submitCall(*keyFile, types.MethodCreate, nil, stdout, stderr)
}

func runSetRewardConfig(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("set-reward-config", stderr)
	keyFile := fs.String("key", "wallet.key", "admin key file")
	asset := fs.String("asset", "", "reward asset id (0 disables rewards)")
	perBottle := fs.String("per-bottle", "", "reward units per bottle (> 0)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	assetID, ok := parseAmount(stderr, "asset", *asset)
	if !ok {
		return 1
	}
	rate, ok := parseAmount(stderr, "per-bottle", *perBottle)
	if !ok {
		return 1
	}
	return submitCall(*keyFile, types.MethodSetRewardConfig,
		types.SetRewardConfigArgs{AssetID: types.U64(assetID), PerBottle: types.U64(rate)}, stdout, stderr)
}

func runSetStation(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("set-station", stderr)
	keyFile := fs.String("key", "wallet.key", "admin key file")
	account := fs.String("account", "", "station address")
	revoke := fs.Bool("revoke", false, "revoke instead of grant")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "account", *account)
	if !ok {
		return 1
	}
	if _, err := crypto.ParseIdentity(addr); err != nil {
		fmt.Fprintf(stderr, "Error: invalid --account: %v\n", err)
		return 1
	}
	return submitCall(*keyFile, types.MethodSetStation, types.SetStationArgs{Account: addr, Station: !*revoke}, stdout, stderr)
}

func runOptIn(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("opt-in", stderr)
	keyFile := fs.String("key", "wallet.key", "signer key file")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return submitCall(*keyFile, types.MethodOptInRewardAsset, nil, stdout, stderr)
}

func runAddBottle(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("add-bottle", stderr)
	keyFile := fs.String("key", "wallet.key", "signer key file")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return submitCall(*keyFile, types.MethodAddBottle, nil, stdout, stderr)
}

func runAddBottles(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("add-bottles", stderr)
	keyFile := fs.String("key", "wallet.key", "station key file")
	amount := fs.String("amount", "", "number of bottles")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	n, ok := parseAmount(stderr, "amount", *amount)
	if !ok {
		return 1
	}
	return submitCall(*keyFile, types.MethodAddBottles, types.AddBottlesArgs{Amount: types.U64(n)}, stdout, stderr)
}

func runAddBottlesFor(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("add-bottles-for", stderr)
	keyFile := fs.String("key", "wallet.key", "station key file")
	user := fs.String("user", "", "address credited with the bottles")
	amount := fs.String("amount", "", "number of bottles")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "user", *user)
	if !ok {
		return 1
	}
	n, ok := parseAmount(stderr, "amount", *amount)
	if !ok {
		return 1
	}
	return submitCall(*keyFile, types.MethodAddBottlesFor, types.AddBottlesForArgs{User: addr, Amount: types.U64(n)}, stdout, stderr)
}

func runBottleCount(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("bottle-count", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return query("recycle_getBottleCount", nil, stdout, stderr)
}

func accountQuery(name, method string) command {
	return func(args []string, stdout, stderr io.Writer) int {
		fs := newFlagSet(name, stderr)
		account := fs.String("account", "", "address to look up")
		if !parseFlags(fs, args, stderr) {
			return 1
		}
		addr, ok := requireFlag(stderr, "account", *account)
		if !ok {
			return 1
		}
		return query(method, []interface{}{addr}, stdout, stderr)
	}
}

var (
	runUserCount = accountQuery("user-count", "recycle_getUserCount")
	runIsStation = accountQuery("is-station", "recycle_isStation")
	runNonce     = accountQuery("nonce", "recycle_nonce")
)

func runConfig(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("config", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return query("recycle_getConfig", nil, stdout, stderr)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	asset := fs.String("asset", "", "asset id")
	account := fs.String("account", "", "address to look up")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	assetID, ok := parseAmount(stderr, "asset", *asset)
	if !ok {
		return 1
	}
	addr, ok := requireFlag(stderr, "account", *account)
	if !ok {
		return 1
	}
	return query("bank_balance", []interface{}{strconv.FormatUint(assetID, 10), addr}, stdout, stderr)
}

func runTransfers(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfers", stderr)
	account := fs.String("account", "", "address to look up")
	limit := fs.Uint64("limit", 0, "maximum records to return (default: server default)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "account", *account)
	if !ok {
		return 1
	}
	params := []interface{}{addr}
	if *limit > 0 {
		params = append(params, strconv.FormatUint(*limit, 10))
	}
	return query("bank_transfers", params, stdout, stderr)
}
