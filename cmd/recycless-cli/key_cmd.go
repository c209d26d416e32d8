package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"recycless/cmd/internal/passphrase"
	"recycless/crypto"
)

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "wallet.key", "path of the key file to write")
	keystore := fs.Bool("keystore", false, "encrypt the key into a keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(*out); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists\n", *out)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error generating key: %v\n", err)
		return 1
	}
	if *keystore {
		pass, err := passphrase.NewSource(keyPassEnv, "key").Get()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
			fmt.Fprintf(stderr, "Error writing keystore: %v\n", err)
			return 1
		}
	} else if err := os.WriteFile(*out, []byte(hex.EncodeToString(key.Bytes())), 0o600); err != nil {
		fmt.Fprintf(stderr, "Error writing key: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Key written to %s\n", *out)
	fmt.Fprintf(stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keyFile := fs.String("key", "wallet.key", "key file")
	hexOut := fs.Bool("hex", false, "print the 0x form instead of bech32")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(strings.TrimSpace(*keyFile))
	if err != nil {
		fmt.Fprintf(stderr, "Error loading key: %v\n", err)
		return 1
	}
	addr := key.PubKey().Address()
	if *hexOut {
		fmt.Fprintln(stdout, addr.Raw().Hex())
		return 0
	}
	fmt.Fprintln(stdout, addr.String())
	return 0
}
