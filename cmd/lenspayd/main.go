// lenspayd runs the minimal auth backend for the lens camera app.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/openxr-labs/lenspay/chain"
	"github.com/openxr-labs/lenspay/server"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	secret := os.Getenv("LENSPAY_JWT_SECRET")
	if secret == "" {
		log.Fatal("LENSPAY_JWT_SECRET is required")
	}
	issuer := os.Getenv("LENSPAY_JWT_ISSUER")

	addr := os.Getenv("LENSPAY_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	rpcURL := os.Getenv("LENSPAY_RPC_URL")
	if rpcURL == "" {
		rpcURL = chain.FluentTestnet.RPCURL
	}
	tokenAddress := os.Getenv("LENSPAY_TOKEN_ADDRESS")
	if tokenAddress == "" {
		tokenAddress = chain.FluidTokenAddress
	}

	cfg := server.Config{
		Verifier:     server.NewJWTVerifier([]byte(secret), issuer),
		Store:        server.NewMemStore(),
		TokenAddress: tokenAddress,
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if client, err := ethclient.DialContext(dialCtx, rpcURL); err != nil {
		log.Printf("balance lookups disabled: %v", err)
	} else {
		cfg.Caller = client
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	log.Printf("listening on %s", addr)
	if err := srv.Run(addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
