// Package privy is an in-process stand-in for the custody provider and the
// chain RPC endpoint, for tests.
package privy

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	privyhttp "github.com/maxlomu/blocksheep-wallet-test/http"
	"github.com/maxlomu/blocksheep-wallet-test/mechanisms/evm"
)

// Endpoint names for call counting
const (
	EndpointCreateWallet = "create_wallet"
	EndpointUserLookup   = "user_lookup"
	EndpointAuthenticate = "authenticate"
	EndpointRPC          = "wallet_rpc"
	EndpointChain        = "chain_rpc"
)

// ChainPath is where the mock serves JSON-RPC for ethclient
const ChainPath = "/rpc"

// Server is a running mock
type Server struct {
	*httptest.Server

	AppID     string
	AppSecret string

	mu          sync.Mutex
	authFailure string
	sendFailure string
	sessionTTL  time.Duration
	users       map[string]privyhttp.User
	grants      map[string][]string
	wallets     map[string]string
	authKey     *ecdsa.PrivateKey
	count       *big.Int
	sent        int
	calls       map[string]int
	contract    common.Address
}

// New starts a mock that accepts appID:appSecret
func New(appID, appSecret string) *Server {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}

	s := &Server{
		AppID:      appID,
		AppSecret:  appSecret,
		sessionTTL: time.Hour,
		users:      map[string]privyhttp.User{},
		grants:     map[string][]string{},
		wallets:    map[string]string{},
		authKey:    key,
		count:      big.NewInt(0),
		calls:      map[string]int{},
		contract:   common.HexToAddress(evm.TestContractAddress),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/wallets", s.authorized(EndpointCreateWallet, s.createWallet))
	mux.HandleFunc("POST /v1/wallets/authenticate", s.authorized(EndpointAuthenticate, s.authenticate))
	mux.HandleFunc("POST /v1/wallets/{id}/rpc", s.authorized(EndpointRPC, s.walletRPC))
	mux.HandleFunc("POST /api/v1/users/wallet/address", s.authorized(EndpointUserLookup, s.userLookup))
	mux.HandleFunc("POST "+ChainPath, s.chainRPC)

	s.Server = httptest.NewServer(mux)
	return s
}

// ChainURL is the JSON-RPC endpoint for ethclient
func (s *Server) ChainURL() string {
	return s.URL + ChainPath
}

// AddUser registers a user with its linked accounts, keyed by each address
func (s *Server) AddUser(userID string, accounts ...privyhttp.LinkedAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := privyhttp.User{ID: userID, LinkedAccounts: accounts}
	for _, a := range accounts {
		if a.Address != "" {
			s.users[strings.ToLower(a.Address)] = user
			s.wallets[a.ID] = a.Address
		}
	}
}

// AddToken makes token authenticate to a session covering walletIDs
func (s *Server) AddToken(token string, walletIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[token] = walletIDs
}

// FailAuthentication makes authenticate reply 401 with msg; "" restores it
func (s *Server) FailAuthentication(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authFailure = msg
}

// FailSubmission makes the wallet rpc reply 400 with msg; "" restores it
func (s *Server) FailSubmission(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendFailure = msg
}

// SetSessionTTL sets expires_at relative to now; zero omits it. A negative
// ttl hands out sessions that are already expired.
func (s *Server) SetSessionTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionTTL = ttl
}

// Calls reports how many requests reached endpoint
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// TotalProviderCalls counts every custody API request, chain reads excluded
func (s *Server) TotalProviderCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for endpoint, n := range s.calls {
		if endpoint != EndpointChain {
			total += n
		}
	}
	return total
}

// Count is the mock contract's counter
func (s *Server) Count() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.count)
}

// HashFor is the transaction hash the n-th (1-based) relay returns
func HashFor(n int) string {
	return fmt.Sprintf("0xfeed%060x", n)
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) authorized(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[endpoint]++
		s.mu.Unlock()

		user, pass, ok := r.BasicAuth()
		if !ok || user != s.AppID || pass != s.AppSecret || r.Header.Get(privyhttp.HeaderAppID) != s.AppID {
			writeError(w, http.StatusUnauthorized, "Invalid app credentials")
			return
		}
		next(w, r)
	}
}

func (s *Server) createWallet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChainType string `json:"chain_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChainType != "ethereum" {
		writeError(w, http.StatusBadRequest, "chain_type must be ethereum")
		return
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	address := common.BytesToAddress(key.PublicKey.X.Bytes()).Hex()

	s.mu.Lock()
	id := fmt.Sprintf("server-wallet-%d", len(s.wallets)+1)
	s.wallets[id] = address
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, privyhttp.Wallet{ID: id, Address: address, ChainType: "ethereum"})
}

func (s *Server) userLookup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	s.mu.Lock()
	user, ok := s.users[strings.ToLower(body.Address)]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserJWT string `json:"user_jwt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	s.mu.Lock()
	failure := s.authFailure
	walletIDs, ok := s.grants[body.UserJWT]
	ttl := s.sessionTTL
	s.mu.Unlock()

	if failure != "" {
		writeError(w, http.StatusUnauthorized, failure)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid JWT")
		return
	}

	key, err := privyhttp.EncodeAuthorizationKey(s.authKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	wallets := make([]privyhttp.Wallet, 0, len(walletIDs))
	s.mu.Lock()
	for _, id := range walletIDs {
		wallets = append(wallets, privyhttp.Wallet{ID: id, Address: s.wallets[id], ChainType: "ethereum"})
	}
	s.mu.Unlock()

	resp := privyhttp.AuthenticateResponse{AuthorizationKey: key, Wallets: wallets}
	if ttl != 0 {
		resp.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) walletRPC(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	valid, err := privyhttp.VerifyRequestSignature(&s.authKey.PublicKey, r.Header.Get(privyhttp.HeaderAuthorizationSignature), privyhttp.SignaturePayload{
		Version: 1,
		Method:  r.Method,
		URL:     s.URL + r.URL.Path,
		Body:    generic,
		Headers: map[string]string{privyhttp.HeaderAppID: r.Header.Get(privyhttp.HeaderAppID)},
	})
	if err != nil || !valid {
		writeError(w, http.StatusUnauthorized, "Invalid authorization signature")
		return
	}

	var req privyhttp.RPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if req.Method != "eth_sendTransaction" || !req.Sponsor {
		writeError(w, http.StatusBadRequest, "Only sponsored eth_sendTransaction is supported")
		return
	}
	if !strings.EqualFold(req.Params.Transaction.To, s.contract.Hex()) || req.Params.Transaction.Data != evm.IncrementSelector {
		writeError(w, http.StatusBadRequest, "Unexpected transaction")
		return
	}

	s.mu.Lock()
	failure := s.sendFailure
	if failure == "" {
		s.sent++
		s.count.Add(s.count, big.NewInt(1))
	}
	n := s.sent
	s.mu.Unlock()

	if failure != "" {
		writeError(w, http.StatusBadRequest, failure)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"method": "eth_sendTransaction",
		"data": map[string]string{
			"hash":           HashFor(n),
			"caip2":          req.CAIP2,
			"transaction_id": fmt.Sprintf("privy-tx-%d", n),
		},
	})
}

type jsonrpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func (s *Server) chainRPC(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[EndpointChain]++
	s.mu.Unlock()

	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, rpcError(nil, -32700, "parse error"))
		return
	}

	switch req.Method {
	case "eth_chainId":
		writeJSON(w, http.StatusOK, rpcResult(req.ID, hexutil.EncodeBig(evm.ChainIDBaseSepolia)))
	case "eth_call":
		if len(req.Params) == 0 {
			writeJSON(w, http.StatusOK, rpcError(req.ID, -32602, "missing call object"))
			return
		}
		var call struct {
			To    string        `json:"to"`
			Data  hexutil.Bytes `json:"data"`
			Input hexutil.Bytes `json:"input"`
		}
		if err := json.Unmarshal(req.Params[0], &call); err != nil {
			writeJSON(w, http.StatusOK, rpcError(req.ID, -32602, err.Error()))
			return
		}
		input := call.Input
		if len(input) == 0 {
			input = call.Data
		}
		if common.HexToAddress(call.To) != s.contract || !isGetCount(input) {
			writeJSON(w, http.StatusOK, rpcResult(req.ID, "0x"))
			return
		}
		writeJSON(w, http.StatusOK, rpcResult(req.ID, hexutil.Encode(common.LeftPadBytes(s.Count().Bytes(), 32))))
	default:
		writeJSON(w, http.StatusOK, rpcError(req.ID, -32601, "method not found"))
	}
}

func isGetCount(input []byte) bool {
	parsed, err := evm.ParseCounterABI()
	if err != nil {
		return false
	}
	return bytes.Equal(input, parsed.Methods[evm.FunctionGetCount].ID)
}

func rpcResult(id json.RawMessage, result interface{}) map[string]interface{} {
	return map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result}
}

func rpcError(id json.RawMessage, code int, msg string) map[string]interface{} {
	return map[string]interface{}{"jsonrpc": "2.0", "id": id, "error": map[string]interface{}{"code": code, "message": msg}}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
