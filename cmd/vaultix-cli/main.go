package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"vaultix/cmd/internal/passphrase"
	"vaultix/config"
	"vaultix/crypto"
)

const keystorePassEnv = "VAULTIX_KEYSTORE_PASS"

var (
	rpcEndpoint = defaultRPCEndpoint()
	networkName = defaultNetwork()
)

func defaultNetwork() string {
	if name := strings.TrimSpace(os.Getenv("VAULTIX_NETWORK")); name != "" {
		return name
	}
	return config.DefaultNetworkName
}

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("VAULTIX_RPC_URL")); url != "" {
		return url
	}
	return "http://127.0.0.1:8545/rpc"
}

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(args) < 1 {
		printUsage()
		return
	}

	pass := passphrase.NewSource(keystorePassEnv)
	switch args[0] {
	case "generate-key":
		if len(args) < 2 {
			exitf("Error: Please provide a keystore path.")
		}
		err = generateKey(args[1], pass)
	case "address":
		if len(args) < 2 {
			exitf("Error: Please provide a keystore path.")
		}
		err = printAddress(args[1], pass)
	case "sign":
		if len(args) < 4 {
			exitf("Error: sign requires <keystore> <method> <params-json> [nonce].")
		}
		err = signCall(args[1], args[2], args[3], args[4:], pass)
	case "call":
		if len(args) < 3 {
			exitf("Error: call requires <method> <params-json> [keystore...].")
		}
		err = call(args[1], args[2], args[3:], pass)
	default:
		printUsage()
		return
	}
	if err != nil {
		exitf("Error: %v", err)
	}
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: vaultix-cli [--rpc URL] [--network NAME] <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key <keystore>                     Create an encrypted key file")
	fmt.Println("  address <keystore>                          Print the identity of a key file")
	fmt.Println("  sign <keystore> <method> <params-json> [n]  Print a proof for one call (nonce n, or fetched)")
	fmt.Println("  call <method> <params-json> [keystore...]   Send a JSON-RPC call signed by each keystore")
	fmt.Printf("The keystore passphrase is read from %s or prompted for.\n", keystorePassEnv)
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			rpcEndpoint = args[i+1]
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case arg == "--network":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--network requires a name")
			}
			networkName = args[i+1]
			i++
		case strings.HasPrefix(arg, "--network="):
			networkName = strings.TrimPrefix(arg, "--network=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func generateKey(path string, pass *passphrase.Source) error {
	secret, err := pass.Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(path, key, secret); err != nil {
		return err
	}
	fmt.Printf("Saved key for %s to %s\n", crypto.FormatIdentity(key.PubKey().Identity()), path)
	return nil
}

func loadKey(path string, pass *passphrase.Source) (*crypto.PrivateKey, error) {
	secret, err := pass.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, secret)
}

func printAddress(path string, pass *passphrase.Source) error {
	key, err := loadKey(path, pass)
	if err != nil {
		return err
	}
	fmt.Println(crypto.FormatIdentity(key.PubKey().Identity()))
	return nil
}

func signCall(path, method, params string, rest []string, pass *passphrase.Source) error {
	key, err := loadKey(path, pass)
	if err != nil {
		return err
	}
	var nonce uint64
	if len(rest) > 0 {
		nonce, err = strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid nonce %q: %w", rest[0], err)
		}
	} else if nonce, err = fetchNonce(key.PubKey().Identity()); err != nil {
		return err
	}
	proof, err := proofFor(signer{key: key, nonce: nonce}, method, []byte(params))
	if err != nil {
		return err
	}
	out, err := json.Marshal(proof)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

type signer struct {
	key   *crypto.PrivateKey
	nonce uint64
}

type proofParam struct {
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func proofFor(s signer, method string, params []byte) (proofParam, error) {
	sig, err := crypto.SignProof(s.key, crypto.CallDigest(networkName, method, s.nonce, params))
	if err != nil {
		return proofParam{}, err
	}
	return proofParam{Nonce: s.nonce, Signature: "0x" + hex.EncodeToString(sig)}, nil
}

// buildRequest encodes a JSON-RPC request. params is compacted before it is
// signed and is then sent byte-for-byte so the proofs stay valid.
func buildRequest(method string, params []byte, signers []signer) ([]byte, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, params); err != nil {
		return nil, fmt.Errorf("params must be valid JSON: %w", err)
	}
	params = compact.Bytes()
	positional := []json.RawMessage{params}
	if len(signers) > 0 {
		proofs := make([]proofParam, 0, len(signers))
		for _, s := range signers {
			proof, err := proofFor(s, method, params)
			if err != nil {
				return nil, err
			}
			proofs = append(proofs, proof)
		}
		encoded, err := json.Marshal(proofs)
		if err != nil {
			return nil, err
		}
		positional = append(positional, encoded)
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	err := enc.Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  positional,
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(body.Bytes()), nil
}

func post(body []byte) (int, []byte, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(rpcEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, out, nil
}

func fetchNonce(id crypto.Identity) (uint64, error) {
	params, err := json.Marshal(map[string]string{"account": crypto.FormatIdentity(id)})
	if err != nil {
		return 0, err
	}
	body, err := buildRequest("auth_nonce", params, nil)
	if err != nil {
		return 0, err
	}
	status, out, err := post(body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Result *struct {
			Nonce uint64 `json:"nonce"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return 0, fmt.Errorf("decode nonce response: %w", err)
	}
	if resp.Error != nil || resp.Result == nil {
		return 0, fmt.Errorf("nonce lookup failed (HTTP %d): %s", status, strings.TrimSpace(string(out)))
	}
	return resp.Result.Nonce, nil
}

func call(method, params string, keystores []string, pass *passphrase.Source) error {
	signers := make([]signer, 0, len(keystores))
	for _, path := range keystores {
		key, err := loadKey(path, pass)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		nonce, err := fetchNonce(key.PubKey().Identity())
		if err != nil {
			return err
		}
		signers = append(signers, signer{key: key, nonce: nonce})
	}
	body, err := buildRequest(method, []byte(params), signers)
	if err != nil {
		return err
	}
	status, out, err := post(body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		fmt.Println(string(out))
	} else {
		fmt.Println(pretty.String())
	}
	if status != http.StatusOK {
		return fmt.Errorf("rpc returned HTTP %d", status)
	}
	return nil
}
