package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/speedrun-hq/gmp-verifier/pkg/api"
	"github.com/speedrun-hq/gmp-verifier/pkg/approval"
	"github.com/speedrun-hq/gmp-verifier/pkg/blockchain"
	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/config"
	"github.com/speedrun-hq/gmp-verifier/pkg/escrow"
	"github.com/speedrun-hq/gmp-verifier/pkg/hubclient"
	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
	"github.com/speedrun-hq/gmp-verifier/pkg/mvmclient"
	"github.com/speedrun-hq/gmp-verifier/pkg/registry"
	"github.com/speedrun-hq/gmp-verifier/pkg/relay"
	"github.com/speedrun-hq/gmp-verifier/pkg/signing"
	"github.com/speedrun-hq/gmp-verifier/pkg/tracker"
	"github.com/speedrun-hq/gmp-verifier/pkg/validator"
	"github.com/speedrun-hq/gmp-verifier/pkg/verifier"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Verifier stopped: %v", err)
	}
}

func newLogger(cfg *config.Config) logger.Logger {
	if cfg.LoggerConfig.Format == "json" {
		return logger.NewLogrusLogger(os.Stdout, cfg.LoggerConfig.Level)
	}
	l := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)
	l.RegisterChain(cfg.HubChainID, "hub")
	for _, chain := range cfg.Chains {
		l.RegisterChain(chain.ChainID, chain.Name)
	}
	return l
}

func newSigners(cfg *config.Config) (map[chains.Kind]signing.Signer, error) {
	signers := make(map[chains.Kind]signing.Signer)
	if cfg.MvmApproverKey != "" {
		s, err := signing.ParseEd25519Signer(cfg.MvmApproverKey)
		if err != nil {
			return nil, fmt.Errorf("invalid MVM approver key: %w", err)
		}
		// Move-VM and Solana-VM escrows share the Ed25519 scheme
		signers[chains.MoveVm] = s
		signers[chains.SolanaVm] = s
	}
	if cfg.EvmApproverKey != "" {
		s, err := signing.NewEcdsaSigner(cfg.EvmApproverKey)
		if err != nil {
			return nil, fmt.Errorf("invalid EVM approver key: %w", err)
		}
		signers[chains.Evm] = s
	}
	return signers, nil
}

// gmpAccount derives a stable 32-byte account for a relay role on a chain
func gmpAccount(role string, chainID uint64) escrow.Address {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], chainID)
	return escrow.Address(crypto.Keccak256Hash([]byte(role), id[:]))
}

func run(ctx context.Context, cfg *config.Config) error {
	stdLogger := newLogger(cfg)

	signers, err := newSigners(cfg)
	if err != nil {
		return err
	}

	var store approval.Store = approval.NewMemoryStore()
	if cfg.ApprovalStoreDSN != "" {
		pg, err := approval.NewPostgresStore(ctx, cfg.ApprovalStoreDSN)
		if err != nil {
			return fmt.Errorf("failed to open approval store: %w", err)
		}
		defer pg.Close()
		store = pg
	}

	cache := tracker.NewEventCache()
	approvals := approval.NewService(signers, store, cache, stdLogger)

	solverRegistry := mvmclient.New(cfg.HubRPCURL, cfg.SolverRegistryAddr, stdLogger)
	resolver := registry.NewResolver(solverRegistry, cfg.RegistryCacheTTL, stdLogger)
	hub := hubclient.New(cfg.IndexerEndpoint, stdLogger)
	gmpRelay := relay.New(stdLogger)
	relaySource := gmpAccount("gmp-hub-source", cfg.HubChainID)

	service := verifier.NewService(verifier.Options{
		HubChainID:      cfg.HubChainID,
		HubKind:         chains.MoveVm,
		PollingInterval: cfg.PollingInterval,
		Workers:         cfg.WorkerCount,
		MaxRetries:      cfg.MaxRetries,
		CircuitBreaker:  cfg.CircuitBreaker,
		RelaySource:     relaySource,
	}, hub, cache, validator.New(resolver, stdLogger), approvals, gmpRelay, stdLogger)

	var escrowHost *relay.Host
	for _, chain := range cfg.Chains {
		if cfg.LocalEscrow.Enabled() && chain.ChainID == cfg.LocalEscrow.ChainID {
			program, minter, closeFn, err := openLocalEscrow(ctx, cfg, chain, signers, relaySource)
			if err != nil {
				return err
			}
			defer closeFn()
			programSource := gmpAccount("gmp-escrow-program", chain.ChainID)
			gmpRelay.Register(chain.ChainID, relay.NewEscrowEndpoint(program, gmpAccount("gmp-relay", chain.ChainID)))
			gmpRelay.Register(cfg.HubChainID, relay.NewHubEndpoint(cache, stdLogger, programSource))
			escrowHost = relay.NewHost(program, minter, gmpRelay, chain.ChainID, cfg.HubChainID, programSource, stdLogger)
			service.AddSource(verifier.NewLocalSource(program, chain.ChainID, chain.Kind))
			stdLogger.NoticeWithChain(chain.ChainID, "Hosting local escrow program (release on %s)", cfg.LocalEscrow.ReleaseMode)
			continue
		}

		if chain.Kind == chains.Evm {
			evmChain := blockchain.NewChainConfig(chain.ChainID, chain.Name, chain.RPCURL, chain.EscrowAddress)
			if err := evmChain.Connect(); err != nil {
				return fmt.Errorf("failed to connect to chain %d: %w", chain.ChainID, err)
			}
			service.AddSource(verifier.NewEvmSource(evmChain, verifier.DefaultLookbackBlocks))
			continue
		}
		service.AddSource(verifier.NewIndexerSource(hub, chain.ChainID, chain.Kind))
	}

	stream := api.NewApprovalStream(stdLogger)
	approvals.OnApproval(stream.Broadcast)
	server := api.NewServer(cfg.APIPort, service, approvals, cache, stream, cfg.MetricsAPIKey, stdLogger)
	if escrowHost != nil {
		server.SetEscrowHost(escrowHost, cfg.LocalEscrow.APIKey)
	}
	go func() {
		if err := server.Start(); err != nil {
			stdLogger.Error("%v", err)
		}
	}()

	stdLogger.Notice("Starting the verifier service...")
	service.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openLocalEscrow opens the hosted escrow program and initializes it on first use
func openLocalEscrow(ctx context.Context, cfg *config.Config, chain config.ChainConfig, signers map[chains.Kind]signing.Signer, relaySource escrow.Address) (*escrow.Program, escrow.Minter, func(), error) {
	memory := escrow.NewMemoryStorage()
	var storage escrow.ChainStorage = memory
	var minter escrow.Minter = memory
	closeFn := func() {}
	if cfg.LocalEscrow.DBPath != "" {
		db, err := escrow.OpenLevelDBStorage(cfg.LocalEscrow.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open escrow ledger: %w", err)
		}
		storage = db
		minter = db
		closeFn = func() { _ = db.Close() }
	}

	params := escrow.InitializeParams{
		Scheme:        chain.Kind.Scheme(),
		TrustedRelay:  gmpAccount("gmp-relay", chain.ChainID),
		TrustedSource: relaySource,
		ReleaseMode:   cfg.LocalEscrow.ReleaseMode,
	}
	if signer, ok := signers[chain.Kind]; ok {
		params.Approver = signer.PublicKey()
	}

	program := escrow.NewProgram(storage)
	if err := program.Initialize(ctx, params); err != nil && !errors.Is(err, escrow.ErrAlreadyInitialized) {
		closeFn()
		return nil, nil, nil, fmt.Errorf("failed to initialize escrow program: %w", err)
	}
	return program, minter, closeFn, nil
}
