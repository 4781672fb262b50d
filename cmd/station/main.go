// Command station runs the treasury request-approval-execution server: the
// inbound HTTP API, the request-lifecycle scheduler, and the
// disaster-recovery mirror sync, all wired onto one repository backend.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/orbit-station/station/internal/platform/config"
	"github.com/orbit-station/station/internal/platform/logging"
	"github.com/orbit-station/station/internal/platform/metrics"
	"github.com/orbit-station/station/internal/platform/migrations"
	"github.com/orbit-station/station/internal/platform/pg"
	"github.com/orbit-station/station/internal/platform/ratelimit"
	"github.com/orbit-station/station/internal/platform/serviceauth"
	"github.com/orbit-station/station/internal/station/api"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/dr"
	"github.com/orbit-station/station/internal/station/ledger"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/policy"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/requestsvc"
	"github.com/orbit-station/station/internal/station/scheduler"
	"github.com/orbit-station/station/internal/station/store"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	flag.Parse()

	var cfg *config.Config
	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		loaded, err := config.LoadFile(trimmed)
		if err != nil {
			log.Fatalf("load config %s: %v", trimmed, err)
		}
		cfg = loaded
	} else {
		loaded, err := config.Load()
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	logger := logging.New("station", cfg.Logging.Level, cfg.Logging.Format)
	metricsCollectors := metrics.New("station")

	rootCtx := context.Background()

	var db *sqlx.DB
	backend := store.Backend(store.NewMemoryBackend())

	dsnVal := resolveDSN(*dsn, cfg)
	if dsnVal != "" {
		var err error
		db, err = pg.Open(rootCtx, dsnVal)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		pg.ConfigurePool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, time.Duration(cfg.Database.ConnMaxLifetime)*time.Second)
		if *runMigrations && cfg.Database.MigrateOnStart {
			if err := migrations.Apply(rootCtx, rawSQLDB(db)); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		backend = store.NewPostgresBackend(db)
	}
	if db != nil {
		defer db.Close()
	}

	users := repo.NewUsers(backend, 256)
	groups := repo.NewUserGroups(backend)
	accounts := repo.NewAccounts(backend, 256)
	assets := repo.NewAssets(backend)
	addressBook := repo.NewAddressBook(backend)
	permissions := repo.NewPermissions(backend)
	bindings := repo.NewPolicyBindings(backend)
	namedRules := repo.NewNamedRules(backend)
	requests := repo.NewRequests(backend)
	transfers := repo.NewTransfers(backend)
	systemInfo := operations.NewSystemInfoStore(backend)

	if err := rebuildIndexes(rootCtx, users, groups, addressBook, bindings, namedRules, requests, transfers); err != nil {
		log.Fatalf("rebuild indexes: %v", err)
	}

	registry := operations.NewRegistry()
	registerOperationHandlers(registry, cfg, accounts, transfers, users, groups, addressBook, permissions, bindings, namedRules, systemInfo)

	ledgers := ledger.NewRegistry()
	if url := strings.TrimSpace(cfg.Collaborators.LedgerURL); url != "" {
		adapter := ledger.NewHTTPAdapter(url, nil)
		for _, asset := range builtinAssetPairs {
			ledgers.Register(asset.Blockchain, asset.Standard, adapter)
		}
	}

	now := func() time.Time { return time.Now().UTC() }
	svcLog := logger.WithContext(rootCtx)

	svc := requestsvc.New(requestsvc.Config{
		Requests:       requests,
		Users:          users,
		UserGroups:     groups,
		Accounts:       accounts,
		AddressBook:    addressBook,
		Permissions:    permissions,
		PolicyBindings: bindings,
		NamedRules:     namedRules,
		Transfers:      transfers,
		SystemInfo:     systemInfo,
		Registry:       registry,
		Ledgers:        ledgers,
		BatchSize:      cfg.Scheduler.BatchSize,
		Metrics:        metricsCollectors,
		Now:            now,
		Log:            svcLog,
	})

	sched := scheduler.New(svc, cfg.Scheduler.Tolerance, now, svcLog)
	svc.AttachScheduler(sched)
	defer sched.Stop()

	if err := armPendingTimers(rootCtx, sched, requests, transfers); err != nil {
		log.Fatalf("arm pending timers: %v", err)
	}
	if err := sched.StartCatchUp(rootCtx, cfg.Scheduler.Cadence); err != nil {
		log.Fatalf("start scheduler catch-up: %v", err)
	}

	wireDisasterRecovery(cfg, accounts, assets, users, systemInfo, logger)

	verifier := serviceauth.NewVerifier(cfg.Auth.JWTSecret)
	upgraderAuth := serviceauth.NewUpgraderAuth(cfg.Auth.UpgraderSecret)
	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RateLimit.RequestsPerSecond, Burst: cfg.RateLimit.Burst})

	router := api.NewRouter(api.Config{
		Service:      svc,
		Requests:     requests,
		Users:        users,
		Verifier:     verifier,
		UpgraderAuth: upgraderAuth,
		Limiter:      limiter,
		Metrics:      metricsCollectors,
		Log:          logger,
	})

	listenAddr := determineAddr(*addr, cfg)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("station listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

// rawSQLDB unwraps sqlx.DB to the *sql.DB migrations.Apply expects.
func rawSQLDB(db *sqlx.DB) *sql.DB { return db.DB }

// rebuildIndexes replays every repository's backend into its in-memory
// secondary indexes. Against the Postgres backend this is what restores
// ByStatus/ByRequester/ByApprover/ByExpiration lookups and unique-name
// enforcement for rows that existed before this process started (§8
// invariant 5, §9 "schedulers are created at boot by replaying").
func rebuildIndexes(
	ctx context.Context,
	users *repo.Users,
	groups *repo.UserGroups,
	addressBook *repo.AddressBook,
	bindings *repo.PolicyBindings,
	namedRules *repo.NamedRules,
	requests *repo.Requests,
	transfers *repo.Transfers,
) error {
	if err := users.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild users: %w", err)
	}
	if err := groups.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild user groups: %w", err)
	}
	if err := addressBook.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild address book: %w", err)
	}
	if err := bindings.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild policy bindings: %w", err)
	}
	if err := namedRules.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild named rules: %w", err)
	}
	if err := requests.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild requests: %w", err)
	}
	if err := transfers.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild transfers: %w", err)
	}
	return nil
}

// armPendingTimers re-arms scheduler timers for every row left mid-flight
// by a prior process: Created requests get their expiration timer back,
// Scheduled requests get their execution timer back, and any Transfer
// still in Created status gets an immediate execution sweep armed (§9
// "{Created: arm expiration}, {Scheduled: arm execution},
// {Transfers.Created: arm submission}").
func armPendingTimers(ctx context.Context, sched *scheduler.Scheduler, requests *repo.Requests, transfers *repo.Transfers) error {
	created, err := requests.ByStatus(ctx, domain.RequestStatusCreated)
	if err != nil {
		return fmt.Errorf("list created requests: %w", err)
	}
	for _, req := range created {
		sched.ScheduleCancelExpiredRequest(ctx, req.ID, time.Unix(0, req.ExpirationDt))
	}

	scheduled, err := requests.ByStatus(ctx, domain.RequestStatusScheduled)
	if err != nil {
		return fmt.Errorf("list scheduled requests: %w", err)
	}
	for _, req := range scheduled {
		sched.ScheduleExecuteRequests(ctx, time.Unix(0, req.ExecutionPlan.At))
	}

	pendingTransfers, err := transfers.ByStatus(ctx, domain.TransferCreated)
	if err != nil {
		return fmt.Errorf("list created transfers: %w", err)
	}
	if len(pendingTransfers) > 0 {
		sched.ScheduleExecuteTransfers(ctx, time.Now())
	}
	return nil
}

// resolveDSN picks the Postgres DSN to connect with: the -dsn flag wins,
// then DATABASE_URL (already folded into cfg.Database.DSN by
// config.Load's applyDatabaseURLOverride), then whatever the config file
// set. An empty result means run against the in-memory backend.
func resolveDSN(flagDSN string, cfg *config.Config) string {
	if v := strings.TrimSpace(flagDSN); v != "" {
		return v
	}
	return strings.TrimSpace(cfg.Database.DSN)
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	addr := strings.TrimSpace(flagAddr)
	if addr != "" {
		return addr
	}
	if cfg.Server.Port != 0 {
		host := cfg.Server.Host
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}
	return ":8080"
}

// registerOperationHandlers wires every request-operation kind §4.6 names
// into registry, including the two handlers (Transfer, the policy-binding
// CRUD pair) whose build step needs a resolver closure over the live
// repository layer rather than a single dependency.
func registerOperationHandlers(
	registry *operations.Registry,
	cfg *config.Config,
	accounts *repo.Accounts,
	transfers *repo.Transfers,
	users *repo.Users,
	groups *repo.UserGroups,
	addressBook *repo.AddressBook,
	permissions *repo.Permissions,
	bindings *repo.PolicyBindings,
	namedRules *repo.NamedRules,
	systemInfo *operations.SystemInfoStore,
) {
	groupExists := func(id domain.ID) bool { return groups.Exists(context.Background(), id) }
	policyExists := func(id domain.ID) bool { return bindings.Exists(context.Background(), id) }
	namedRuleResolver := func(ctx context.Context, id domain.ID) (domain.Rule, error) {
		rule, err := namedRules.Get(ctx, id)
		if err != nil {
			return domain.Rule{}, err
		}
		return rule.Rule, nil
	}

	registry.Register(operations.NewAddAccountHandler(accounts, policyExists))
	registry.Register(operations.NewEditAccountHandler(accounts, policyExists))
	registry.Register(operations.NewAddUserHandler(users, groupExists))
	registry.Register(operations.NewEditUserHandler(users, groupExists))
	registry.Register(operations.NewAddUserGroupHandler(groups))
	registry.Register(operations.NewEditUserGroupHandler(groups))
	registry.Register(operations.NewRemoveUserGroupHandler(groups))
	registry.Register(operations.NewAddAddressBookEntryHandler(addressBook))
	registry.Register(operations.NewEditAddressBookEntryHandler(addressBook))
	registry.Register(operations.NewRemoveAddressBookEntryHandler(addressBook))
	registry.Register(operations.NewEditPermissionHandler(permissions))
	registry.Register(operations.NewAddRequestPolicyHandler(bindings, namedRuleResolver))
	registry.Register(operations.NewEditRequestPolicyHandler(bindings, namedRuleResolver))
	registry.Register(operations.NewRemoveRequestPolicyHandler(bindings))
	registry.Register(operations.NewManageSystemInfoHandler(systemInfo))
	registry.Register(operations.NewSetDisasterRecoveryHandler(systemInfo, groupExists))
	registry.Register(operations.NewTransferHandler(accounts, transfers, accountPolicyResolver(bindings, namedRules, systemInfo, users)))

	if url := strings.TrimSpace(cfg.Collaborators.UpgraderURL); url != "" {
		registry.Register(operations.NewChangeCanisterHandler(systemInfo, operations.NewHTTPUpgrader(url, nil)))
	}
	if url := strings.TrimSpace(cfg.Collaborators.ExternalResourceURL); url != "" {
		adapter := operations.NewHTTPExternalResourceAdapter(url, nil)
		registry.Register(operations.NewCreateExternalResourceHandler(adapter))
		registry.Register(operations.NewChangeExternalResourceHandler(adapter))
		registry.Register(operations.NewConfigureExternalResourceHandler(adapter))
		registry.Register(operations.NewCallExternalResourceHandler(adapter))
		registry.Register(operations.NewFundExternalResourceHandler(adapter))
	}
}

// accountPolicyResolver implements operations.PolicyResolver: it resolves
// the PolicyBinding named by account's own TransferRequestPolicyID
// (§4.6.1), falling back to the station's default quorum rule when the
// account has none configured. Named rules are expanded inline since a
// Transfer's snapshot must carry the fully-expanded tree, never a
// NamedRule reference (see policy.Expand).
func accountPolicyResolver(bindings *repo.PolicyBindings, namedRules *repo.NamedRules, systemInfo *operations.SystemInfoStore, users *repo.Users) operations.PolicyResolver {
	resolveNamed := func(id domain.ID) (domain.Rule, error) {
		rule, err := namedRules.Get(context.Background(), id)
		if err != nil {
			return domain.Rule{}, err
		}
		return rule.Rule, nil
	}

	return func(ctx context.Context, requester domain.ID, account domain.Account) (domain.PolicySnapshot, error) {
		rule, err := resolveAccountRule(ctx, account, bindings, systemInfo)
		if err != nil {
			return domain.PolicySnapshot{}, err
		}
		expanded, err := policy.Expand(rule, resolveNamed)
		if err != nil {
			return domain.PolicySnapshot{}, err
		}
		m := mainMembership{ctx: ctx, users: users}
		approvers := policy.EligibleApprovers(expanded, requester, m)
		return domain.PolicySnapshot{Rule: expanded, EligibleApprovers: approvers}, nil
	}
}

func resolveAccountRule(ctx context.Context, account domain.Account, bindings *repo.PolicyBindings, systemInfo *operations.SystemInfoStore) (domain.Rule, error) {
	if account.TransferRequestPolicyID != nil {
		binding, err := bindings.Get(ctx, *account.TransferRequestPolicyID)
		if err == nil {
			return binding.Rule, nil
		}
	}
	info, err := systemInfo.Get(ctx)
	if err != nil {
		return domain.Rule{}, err
	}
	if info.DefaultQuorumPercent > 0 {
		return domain.Rule{Kind: domain.RuleQuorumPercentage, Approvers: domain.AnySpecifier(), MinPercent: info.DefaultQuorumPercent}, nil
	}
	min := info.DefaultQuorum
	if min <= 0 {
		min = 1
	}
	return domain.Rule{Kind: domain.RuleQuorum, Approvers: domain.AnySpecifier(), MinVotes: min}, nil
}

// mainMembership is a minimal policy.Membership over just the active-user
// facts accountPolicyResolver's rule shapes need (Quorum/QuorumPercentage
// over AnySpecifier only touch active-user counts, never AllowListed), kept
// local to main rather than exported from requestsvc.
type mainMembership struct {
	ctx   context.Context
	users *repo.Users
}

func (m mainMembership) ActiveUsersInGroup(group domain.ID) []domain.ID {
	all, err := m.users.List(m.ctx)
	if err != nil {
		return nil
	}
	var out []domain.ID
	for _, u := range all {
		if u.IsActive() && u.InGroup(group) {
			out = append(out, u.ID)
		}
	}
	return out
}

func (m mainMembership) AllActiveUsers() []domain.ID {
	all, err := m.users.List(m.ctx)
	if err != nil {
		return nil
	}
	var out []domain.ID
	for _, u := range all {
		if u.IsActive() {
			out = append(out, u.ID)
		}
	}
	return out
}

func (m mainMembership) IsAllowListed(domain.Request, string, string) bool { return false }

// wireDisasterRecovery builds a dr.Syncer and registers its observers on
// the Users/Accounts repositories only when a mirror target is configured;
// a station with no disaster-recovery collaborator simply does not sync.
func wireDisasterRecovery(cfg *config.Config, accounts *repo.Accounts, assets *repo.Assets, users *repo.Users, systemInfo *operations.SystemInfoStore, logger *logging.Logger) {
	url := strings.TrimSpace(cfg.Collaborators.DisasterRecoveryURL)
	if url == "" {
		return
	}
	adapter := dr.NewHTTPAdapter(url, nil)
	syncer := dr.NewSyncer(accounts, assets, users, systemInfo, adapter, logger)
	users.AddObserver(dr.NewUserObserver(syncer))
	accounts.AddObserver(dr.NewAccountObserver(syncer))
	syncer.MarkReady()
}

// builtinAssetPairs names every (blockchain, standard) pair the station
// knows how to route to a generic ledger HTTP collaborator when one is
// configured. Extending supported assets only needs a new repo.Assets
// entry; this list exists solely to register the adapter under every pair
// clients might submit transfers against.
var builtinAssetPairs = []struct{ Blockchain, Standard string }{
	{"icp", "native"},
	{"ethereum", "erc20"},
	{"bitcoin", "native"},
}

