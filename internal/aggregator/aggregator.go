// Package aggregator fans a snapshot request out to every configured agent
// in parallel, tracks per-agent failures, and drives best-effort
// auto-recovery so a flaky agent self-heals instead of staying stuck.
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sinfolonokojo/mt5-backend/internal/accountmap"
	"github.com/sinfolonokojo/mt5-backend/internal/agentclient"
	"github.com/sinfolonokojo/mt5-backend/internal/agentregistry"
	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
	"github.com/sinfolonokojo/mt5-backend/internal/domain"
)

// defaultRecoveryThreshold is the default failure count that triggers a
// /refresh call, overridable via Config.RecoveryThreshold.
const defaultRecoveryThreshold = 2

// recoveryRetryDelay is how long triggerRecovery waits after a successful
// /refresh before the caller retries the snapshot fetch. Var so tests can
// shorten it.
var recoveryRetryDelay = 2 * time.Second

// Config controls aggregator behaviour.
type Config struct {
	AgentTimeout      time.Duration
	RecoveryThreshold int
}

// ClientFactory builds an agentclient.Client for a given base URL, injected
// so the aggregator shares the process-wide pooled transport.
type ClientFactory func(baseURL string) *agentclient.Client

// Aggregator fans out to every registered agent and tracks its health.
type Aggregator struct {
	registry *agentregistry.Registry
	newClient ClientFactory
	accounts  *accountmap.Map
	cfg       Config
	log       zerolog.Logger

	mu            sync.Mutex
	failureCounts map[string]uint32
}

// New builds an Aggregator over the given agent registry.
func New(registry *agentregistry.Registry, newClient ClientFactory, accounts *accountmap.Map, cfg Config, log zerolog.Logger) *Aggregator {
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = defaultRecoveryThreshold
	}
	return &Aggregator{
		registry:      registry,
		newClient:     newClient,
		accounts:      accounts,
		cfg:           cfg,
		log:           log.With().Str("component", "aggregator").Logger(),
		failureCounts: make(map[string]uint32),
	}
}

type agentResult struct {
	name      string
	url       string
	accounts  []domain.AccountSnapshot
	status    domain.AgentStatus
}

// FetchAllAgents calls every agent's /accounts endpoint in parallel,
// stamps each snapshot with its owning agent, and returns the merged list
// plus a per-agent status vector. Results are merged in the registry's
// agent order (sorted by name), whatever order the calls complete in.
func (a *Aggregator) FetchAllAgents(ctx context.Context) ([]domain.AccountSnapshot, []domain.AgentStatusEntry) {
	agents := a.registry.All()
	results := make([]agentResult, len(agents))

	var g errgroup.Group
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, agent)
			return nil
		})
	}
	_ = g.Wait()

	var allAccounts []domain.AccountSnapshot
	statuses := make([]domain.AgentStatusEntry, 0, len(results))
	var mapEntries []accountmap.Entry
	now := time.Now().UTC()

	for _, r := range results {
		statuses = append(statuses, domain.AgentStatusEntry{
			AgentName:     r.name,
			AgentURL:      r.url,
			Status:        r.status,
			AccountsCount: len(r.accounts),
			LastChecked:   now,
		})
		for _, acc := range r.accounts {
			acc.OwnerAgent = r.name
			allAccounts = append(allAccounts, acc)
			mapEntries = append(mapEntries, accountmap.Entry{AccountID: acc.AccountID, AgentName: r.name})
		}
	}
	if a.accounts != nil {
		a.accounts.UpdateBulk(mapEntries)
	}

	a.log.Info().Int("agents", len(agents)).Int("accounts", len(allAccounts)).Msg("fetched all agents")
	return allAccounts, statuses
}

func (a *Aggregator) fetchOne(ctx context.Context, agent domain.Agent) agentResult {
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.AgentTimeout)
	client := a.newClient(agent.BaseURL)
	accounts, status, err := a.callAndClassify(reqCtx, client)
	cancel()
	result := agentResult{name: agent.Name, url: agent.BaseURL, accounts: accounts, status: status}

	if a.applyFailurePolicy(ctx, agent, client, status, err) {
		retryCtx, retryCancel := context.WithTimeout(ctx, a.cfg.AgentTimeout)
		accounts, status, _ = a.callAndClassify(retryCtx, client)
		retryCancel()
		result.accounts, result.status = accounts, status
	}
	return result
}

// callAndClassify fetches the agent's accounts and classifies connectivity:
// any successful response is online, whatever its accounts report; a
// timeout is timeout, an upstream failure offline, anything else error. A
// successful response with any "disconnected" account also returns
// errDisconnectedAccounts so the failure policy still counts it.
func (a *Aggregator) callAndClassify(ctx context.Context, client *agentclient.Client) ([]domain.AccountSnapshot, domain.AgentStatus, error) {
	accounts, err := client.Accounts(ctx)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.Timeout:
			return nil, domain.AgentTimeout, err
		case apperr.UpstreamFailure:
			return nil, domain.AgentOffline, err
		default:
			return nil, domain.AgentError, err
		}
	}

	anyDisconnected := false
	for _, acc := range accounts {
		if acc.Status == domain.AccountDisconnected {
			anyDisconnected = true
			break
		}
	}
	if anyDisconnected {
		return accounts, domain.AgentOnline, errDisconnectedAccounts
	}
	return accounts, domain.AgentOnline, nil
}

var errDisconnectedAccounts = disconnectedMarker{}

type disconnectedMarker struct{}

func (disconnectedMarker) Error() string { return "agent reported disconnected account(s)" }

// applyFailurePolicy implements the failure-counter/auto-recovery state
// machine from spec §4.7. It reports whether the caller should retry the
// snapshot fetch: a refresh was triggered, the disconnected-accounts case
// was the trigger, and the refresh call itself succeeded.
func (a *Aggregator) applyFailurePolicy(ctx context.Context, agent domain.Agent, client *agentclient.Client, status domain.AgentStatus, callErr error) bool {
	a.mu.Lock()
	count := a.failureCounts[agent.Name]
	a.mu.Unlock()

	switch {
	case status == domain.AgentOnline && callErr == nil:
		a.setFailureCount(agent.Name, 0)
		return false

	case status == domain.AgentOnline && callErr == errDisconnectedAccounts:
		count++
		a.setFailureCount(agent.Name, count)
		if count >= uint32(a.cfg.RecoveryThreshold) {
			refreshed := a.triggerRecovery(ctx, agent, client, true)
			a.setFailureCount(agent.Name, 0)
			return refreshed
		}
		return false

	case status == domain.AgentTimeout:
		count++
		a.setFailureCount(agent.Name, count)
		return false

	case status == domain.AgentOffline:
		count++
		a.setFailureCount(agent.Name, count)
		if count >= uint32(a.cfg.RecoveryThreshold) {
			a.triggerRecovery(ctx, agent, client, false)
			a.setFailureCount(agent.Name, 0)
		}
		return false

	default:
		count++
		a.setFailureCount(agent.Name, count)
		return false
	}
}

// triggerRecovery POSTs /refresh best-effort. When retry is true (the
// disconnected-accounts case) it waits briefly for the terminal to settle
// so the caller can retry the snapshot fetch inline, reporting the
// retried snapshot in the same aggregation cycle per spec §4.7/§8.3. It
// reports whether the refresh itself succeeded.
func (a *Aggregator) triggerRecovery(ctx context.Context, agent domain.Agent, client *agentclient.Client, retry bool) bool {
	log := a.log.With().Str("agent", agent.Name).Logger()
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := client.Refresh(refreshCtx); err != nil {
		log.Warn().Err(err).Msg("auto-recovery refresh failed, resetting counter anyway")
		return false
	}
	log.Info().Bool("retry", retry).Msg("triggered agent auto-recovery refresh")
	if retry {
		time.Sleep(recoveryRetryDelay)
	}
	return retry
}

func (a *Aggregator) setFailureCount(agentName string, n uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failureCounts[agentName] = n
}

// FailureCount returns the current failure counter for an agent, for tests
// and observability.
func (a *Aggregator) FailureCount(agentName string) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failureCounts[agentName]
}

// FetchTradeHistory resolves the owning agent for accountID (repopulating
// the account map via FetchAllAgents on a miss) and fetches trade history
// since fromDate, or the initial 30-day window when fromDate is empty.
func (a *Aggregator) FetchTradeHistory(ctx context.Context, accountID uint64, fromDate string) ([]domain.TradeRecord, error) {
	agentName, ok := a.accounts.Get(accountID)
	if !ok {
		a.FetchAllAgents(ctx)
		agentName, ok = a.accounts.Get(accountID)
		if !ok {
			return nil, apperr.New(apperr.NotFound, "account not found on any agent")
		}
	}
	agent, ok := a.registry.Resolve(agentName)
	if !ok {
		return nil, apperr.New(apperr.Internal, "owning agent no longer registered")
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.AgentTimeout)
	defer cancel()
	client := a.newClient(agent.BaseURL)
	return client.TradeHistory(reqCtx, fromDate)
}
