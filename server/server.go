package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openxr-labs/lenspay/chain"
	"github.com/openxr-labs/lenspay/license"
)

const erc20ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// Config wires the backend's collaborators.
type Config struct {
	Verifier TokenVerifier
	Store    *MemStore

	// Caller reads token balances from the payment chain. Optional; the
	// balance endpoint returns 503 without it.
	Caller license.ContractCaller
	// TokenAddress is the ERC20 contract balances are read from.
	TokenAddress string

	// Registry receives the backend metrics (prometheus.DefaultRegisterer
	// when nil).
	Registry prometheus.Registerer
}

// Server is the minimal auth backend.
type Server struct {
	config  Config
	engine  *gin.Engine
	metrics *Metrics
	erc20   abi.ABI
}

// New builds the backend and its routes.
func New(config Config) (*Server, error) {
	if config.Verifier == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	if config.Store == nil {
		config.Store = NewMemStore()
	}
	if config.TokenAddress == "" {
		config.TokenAddress = chain.FluidTokenAddress
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	s := &Server{
		config:  config,
		metrics: NewMetrics(config.Registry),
		erc20:   parsed,
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.metrics.Middleware())

	engine.POST("/api/auth/login", s.handleLogin)
	engine.GET("/api/auth/me", s.handleMe)
	engine.POST("/api/wallet/balance", s.handleBalance)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer, ok := config.Registry.(prometheus.Gatherer); ok {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.engine = engine
	return s, nil
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) bearerSubject(c *gin.Context) (string, bool) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" || token == c.GetHeader("Authorization") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no authorization token provided"})
		return "", false
	}

	subject, err := s.config.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return "", false
	}
	return subject, true
}

type loginRequest struct {
	WalletAddress string `json:"walletAddress"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phoneNumber"`
}

func (s *Server) handleLogin(c *gin.Context) {
	subject, ok := s.bearerSubject(c)
	if !ok {
		s.metrics.logins.WithLabelValues("unauthorized").Inc()
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		s.metrics.logins.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request data"})
		return
	}

	user := s.config.Store.Upsert(subject, req.WalletAddress, req.Email, req.PhoneNumber)
	s.metrics.logins.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleMe(c *gin.Context) {
	subject, ok := s.bearerSubject(c)
	if !ok {
		return
	}

	user := s.config.Store.GetByIdentity(subject)
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type balanceRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (s *Server) handleBalance(c *gin.Context) {
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.WalletAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet address is required"})
		return
	}

	if s.config.Caller == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "balance lookups are not configured"})
		return
	}

	balance, err := s.tokenBalance(c.Request.Context(), req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"walletAddress": req.WalletAddress,
		"balanceWei":    balance.String(),
	})
}

func (s *Server) tokenBalance(ctx context.Context, account string) (*big.Int, error) {
	data, err := s.erc20.Pack("balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	token := common.HexToAddress(s.config.TokenAddress)
	result, err := s.config.Caller.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}

	out, err := s.erc20.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", out[0])
	}
	return balance, nil
}
