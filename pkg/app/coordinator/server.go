// Package coordinator implements app.Runner for the coordinator process.
package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/escrow-middleware/pkg/app/http"
	"github.com/chainsafe/escrow-middleware/pkg/auth"
	"github.com/chainsafe/escrow-middleware/pkg/config"
	escrowservice "github.com/chainsafe/escrow-middleware/pkg/coordinator/service"
	"github.com/chainsafe/escrow-middleware/pkg/escrowsig"
	"github.com/chainsafe/escrow-middleware/pkg/keys"
	"github.com/chainsafe/escrow-middleware/pkg/ledger"
	"github.com/chainsafe/escrow-middleware/pkg/pgutil"
	"github.com/chainsafe/escrow-middleware/pkg/transferstore"
	"github.com/chainsafe/escrow-middleware/pkg/watcher"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the coordinator server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new coordinator server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("coordinator config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting coordinator",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store := transferstore.NewStore(db)

	cipher, err := s.openCipher()
	if err != nil {
		return err
	}

	authority, err := s.openAuthority(logger)
	if err != nil {
		return err
	}

	claimSeed := os.Getenv(cfg.KeyManagement.ClaimSeedEnv)
	if claimSeed == "" {
		return fmt.Errorf("claim seed not set: env=%s", cfg.KeyManagement.ClaimSeedEnv)
	}

	lgr, err := s.openLedger(authority, logger)
	if err != nil {
		return err
	}

	w := watcher.New(store, lgr.Subscribe(), cfg.Watcher.SweepInterval, logger)
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		_ = w.Run(ctx)
	}()

	maxAmount, err := decimal.NewFromString(cfg.Escrow.MaxTransferAmount)
	if err != nil {
		return fmt.Errorf("invalid escrow.max_transfer_amount: %w", err)
	}

	svc := escrowservice.NewEscrow(
		escrowservice.Config{
			MaxTransferAmount: maxAmount,
			AuthorizationTTL:  cfg.Escrow.AuthorizationTTL,
		},
		store,
		lgr,
		cipher,
		authority,
		common.HexToAddress(cfg.Ledger.CoordinatorAddress),
		common.HexToAddress(cfg.Ledger.AdminAddress),
		[]byte(claimSeed),
		logger,
	)

	validator := auth.NewJWTValidator(cfg.Auth.JWKSURL, cfg.Auth.Issuer)
	authmw := auth.NewMiddleware(validator, cfg.Auth.AdminSubjects, logger)

	router := s.setupRouter(escrowservice.NewLogService(svc, logger), authmw, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	stop()
	<-watcherDone

	return err
}

func (s *Server) openCipher() (keys.TokenCipher, error) {
	masterKeyStr := os.Getenv(s.cfg.KeyManagement.MasterKeyEnv)
	if masterKeyStr == "" {
		return nil, fmt.Errorf(
			"escrow master key not set: env=%s (hint: openssl rand -base64 32)",
			s.cfg.KeyManagement.MasterKeyEnv,
		)
	}

	masterKey, err := keys.MasterKeyFromBase64(masterKeyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid escrow master key: %w", err)
	}
	return keys.NewMasterKeyCipher(masterKey)
}

func (s *Server) openAuthority(logger *zap.Logger) (*escrowsig.Authority, error) {
	keyHex := os.Getenv(s.cfg.KeyManagement.AuthorityKeyEnv)
	if keyHex == "" {
		return nil, fmt.Errorf("authority key not set: env=%s", s.cfg.KeyManagement.AuthorityKeyEnv)
	}

	authority, err := escrowsig.AuthorityFromHex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid authority key: %w", err)
	}
	logger.Info("Authority loaded", zap.String("address", authority.Address().Hex()))
	return authority, nil
}

func (s *Server) openLedger(authority *escrowsig.Authority, logger *zap.Logger) (*ledger.Ledger, error) {
	params := ledger.Params{
		Address:     common.HexToAddress(s.cfg.Ledger.Address),
		ChainID:     s.cfg.Ledger.ChainID,
		Coordinator: common.HexToAddress(s.cfg.Ledger.CoordinatorAddress),
		Authority:   authority.Address(),
		Admin:       common.HexToAddress(s.cfg.Ledger.AdminAddress),
		MaxTimeout:  s.cfg.Ledger.MaxTimeout,
	}

	lgr, err := ledger.New(params, ledger.NewBank(), logger)
	if err != nil {
		return nil, fmt.Errorf("create escrow ledger: %w", err)
	}
	logger.Info("Escrow ledger initialized",
		zap.String("address", params.Address.Hex()),
		zap.Uint64("chain_id", params.ChainID),
	)
	return lgr, nil
}

func (s *Server) setupRouter(
	svc escrowservice.Service,
	authmw *auth.Middleware,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		escrowservice.RegisterRoutes(r, svc, authmw, logger)
	})

	return r
}
