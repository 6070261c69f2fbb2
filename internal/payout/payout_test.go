package payout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/payout"
	"github.com/calebhrenchir/granted.gg-sub001/internal/rail"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// fakeRail records funds-moving calls and lets each step be overridden.
type fakeRail struct {
	rail.Rail

	requirements *rail.AccountRequirements
	reqsErr      error

	transferErr   error
	transferCalls []int64

	payoutErr   error
	payoutCalls []int64
}

func (f *fakeRail) RetrieveAccountRequirements(_ context.Context, _ string) (*rail.AccountRequirements, error) {
	if f.reqsErr != nil {
		return nil, f.reqsErr
	}
	if f.requirements != nil {
		return f.requirements, nil
	}
	return &rail.AccountRequirements{PayoutsEnabled: true}, nil
}

func (f *fakeRail) CreateTransfer(_ context.Context, _ string, amountCents int64, _ rail.Method) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transferCalls = append(f.transferCalls, amountCents)
	return "tr_1", nil
}

func (f *fakeRail) CreatePayout(_ context.Context, _ string, amountCents int64, _ rail.Method) (string, error) {
	if f.payoutErr != nil {
		return "", f.payoutErr
	}
	f.payoutCalls = append(f.payoutCalls, amountCents)
	return "po_1", nil
}

type fakeUsers struct {
	user *domain.User
	err  error
}

func (f *fakeUsers) GetByID(_ context.Context, _ string) (*domain.User, error) {
	return f.user, f.err
}

type fakeSettlement struct {
	lockErr   error
	locked    bool
	released  bool
	links     []repository.EarningLink
	linksErr  error
	settleErr error
	settled   [][]repository.EarningLink
}

func (f *fakeSettlement) AcquireWithdrawalLock(_ context.Context, _ string) (func(), error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.locked = true
	return func() { f.released = true }, nil
}

func (f *fakeSettlement) EarningLinks(_ context.Context, _ string) ([]repository.EarningLink, error) {
	return f.links, f.linksErr
}

func (f *fakeSettlement) Settle(_ context.Context, _ string, links []repository.EarningLink) error {
	if f.settleErr != nil {
		return f.settleErr
	}
	f.settled = append(f.settled, links)
	return nil
}

// lockingSettlement honors the real lock contract: at most one holder at
// a time, contenders get ErrWithdrawalInProgress, and a settlement drains
// the balance so a later withdrawal finds nothing.
type lockingSettlement struct {
	sem chan struct{}

	mu      sync.Mutex
	links   []repository.EarningLink
	settled [][]repository.EarningLink
}

func newLockingSettlement(links []repository.EarningLink) *lockingSettlement {
	return &lockingSettlement{sem: make(chan struct{}, 1), links: links}
}

func (s *lockingSettlement) AcquireWithdrawalLock(_ context.Context, _ string) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	default:
		return nil, domain.ErrWithdrawalInProgress
	}
}

func (s *lockingSettlement) EarningLinks(_ context.Context, _ string) ([]repository.EarningLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links, nil
}

func (s *lockingSettlement) Settle(_ context.Context, _ string, links []repository.EarningLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = append(s.settled, links)
	s.links = nil
	return nil
}

// gatedRail parks the transfer until the test releases it, so a second
// withdrawal can be attempted while the first one holds the lock.
type gatedRail struct {
	fakeRail

	entered chan struct{}
	proceed chan struct{}
}

func (g *gatedRail) CreateTransfer(ctx context.Context, account string, amountCents int64, method rail.Method) (string, error) {
	close(g.entered)
	<-g.proceed
	return g.fakeRail.CreateTransfer(ctx, account, amountCents, method)
}

func eligibleUser() *domain.User {
	ref := "acct_1"
	return &domain.User{
		ID:                  "user-1",
		Email:               "seller@example.com",
		IdentityVerified:    true,
		ConnectedAccountRef: &ref,
	}
}

func twoLinks() []repository.EarningLink {
	return []repository.EarningLink{
		{LinkID: "link-1", Earnings: decimal.New(3000, -2)}, // $30.00
		{LinkID: "link-2", Earnings: decimal.New(2000, -2)}, // $20.00
	}
}

func newService(users *fakeUsers, settlement *fakeSettlement, r *fakeRail) *payout.Service {
	return payout.NewService(users, settlement, r, "https://example.com/verify", metrics.New(), logger.NewNop())
}

func TestWithdraw_Standard(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: twoLinks()}
	r := &fakeRail{}

	receipt, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)
	require.NoError(t, err)

	// $30 + $20 across two links moves as a single $50.00 transfer.
	assert.Equal(t, []int64{5000}, r.transferCalls)
	assert.Equal(t, []int64{5000}, r.payoutCalls)
	assert.Equal(t, int64(5000), receipt.GrossCents)
	assert.Equal(t, int64(5000), receipt.NetCents)
	assert.Equal(t, int64(0), receipt.InstantFeeCents)
	assert.Equal(t, "tr_1", receipt.TransferRef)
	assert.Equal(t, "po_1", receipt.PayoutRef)
	assert.False(t, receipt.PayoutPending)

	require.Len(t, settlement.settled, 1)
	assert.Equal(t, twoLinks(), settlement.settled[0])
	assert.True(t, settlement.released, "lock must be released")
}

func TestWithdraw_InstantFee(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: []repository.EarningLink{
		{LinkID: "link-1", Earnings: decimal.NewFromInt(100)}, // $100.00
	}}
	r := &fakeRail{}

	receipt, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodInstant)
	require.NoError(t, err)

	// The instant fee comes out of the payout, not the ledger: the full
	// gross transfers and settles, the bank receives net.
	assert.Equal(t, int64(10000), receipt.GrossCents)
	assert.Equal(t, int64(100), receipt.InstantFeeCents)
	assert.Equal(t, int64(9900), receipt.NetCents)
	assert.Equal(t, []int64{10000}, r.transferCalls)
	assert.Equal(t, []int64{9900}, r.payoutCalls)
	require.Len(t, settlement.settled, 1)
}

func TestWithdraw_ZeroBalance(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{}
	r := &fakeRail{}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)

	in, ok := domain.AsIneligibility(err)
	require.True(t, ok, "want ineligibility, got %v", err)
	assert.Contains(t, in.Reason, "no balance")
	assert.Empty(t, r.transferCalls, "no external call may happen on zero balance")
	assert.Empty(t, r.payoutCalls)
	assert.Empty(t, settlement.settled)
	assert.True(t, settlement.released)
}

func TestWithdraw_Ineligibility(t *testing.T) {
	frozen := eligibleUser()
	frozen.Frozen = true

	unverified := eligibleUser()
	unverified.IdentityVerified = false

	noAccount := eligibleUser()
	noAccount.ConnectedAccountRef = nil

	testCases := []struct {
		name       string
		user       *domain.User
		wantReason string
	}{
		{"frozen account", frozen, "frozen"},
		{"unverified identity", unverified, "identity verification"},
		{"no connected account", noAccount, "no payout account"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settlement := &fakeSettlement{links: twoLinks()}
			r := &fakeRail{}

			_, err := newService(&fakeUsers{user: tc.user}, settlement, r).
				Withdraw(context.Background(), "user-1", rail.MethodStandard)

			in, ok := domain.AsIneligibility(err)
			require.True(t, ok, "want ineligibility, got %v", err)
			assert.Contains(t, in.Reason, tc.wantReason)
			assert.False(t, settlement.locked, "eligibility runs before the lock")
			assert.Empty(t, r.transferCalls)
		})
	}
}

func TestWithdraw_AccountNotReady(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: twoLinks()}
	r := &fakeRail{requirements: &rail.AccountRequirements{
		PayoutsEnabled: false,
		Missing:        []string{"external_account"},
	}}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)

	in, ok := domain.AsIneligibility(err)
	require.True(t, ok)
	assert.Equal(t, []string{"external_account"}, in.Missing)
	assert.Empty(t, r.transferCalls)
	assert.Empty(t, settlement.settled)
}

func TestWithdraw_TransferFails(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: twoLinks()}
	r := &fakeRail{transferErr: &rail.Error{StatusCode: 400, Code: "balance_insufficient", Message: "nope"}}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransferStateUnknown)
	assert.Empty(t, r.payoutCalls, "no payout after a failed transfer")
	assert.Empty(t, settlement.settled, "nothing settles after a failed transfer")
	assert.True(t, settlement.released)
}

func TestWithdraw_TransferAmbiguous(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: twoLinks()}
	r := &fakeRail{transferErr: context.DeadlineExceeded}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)

	assert.ErrorIs(t, err, domain.ErrTransferStateUnknown)
	assert.Empty(t, settlement.settled, "an ambiguous transfer must not settle")
}

func TestWithdraw_PayoutFailureStillSettles(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: twoLinks()}
	r := &fakeRail{payoutErr: &rail.Error{StatusCode: 500, Message: "bank rejected"}}

	receipt, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)
	require.NoError(t, err, "a payout failure after the transfer is not a withdrawal failure")

	assert.True(t, receipt.PayoutPending)
	assert.Empty(t, receipt.PayoutRef)
	assert.Equal(t, "tr_1", receipt.TransferRef)
	require.Len(t, settlement.settled, 1, "the ledger must still settle")
}

func TestWithdraw_SettleFailureAfterTransfer(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{links: twoLinks(), settleErr: domain.ErrBalanceChanged}
	r := &fakeRail{}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBalanceChanged)
	assert.Contains(t, err.Error(), "tr_1", "the error must carry the transfer ref for reconciliation")
	assert.Equal(t, []int64{5000}, r.transferCalls, "the transfer already happened")
}

func TestWithdraw_Concurrent(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{lockErr: domain.ErrWithdrawalInProgress}
	r := &fakeRail{}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", rail.MethodStandard)

	assert.ErrorIs(t, err, domain.ErrWithdrawalInProgress)
	assert.Empty(t, r.transferCalls)
}

func TestWithdraw_DoubleWithdrawalRace(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := newLockingSettlement(twoLinks())
	r := &gatedRail{entered: make(chan struct{}), proceed: make(chan struct{})}
	svc := payout.NewService(users, settlement, r, "https://example.com/verify", metrics.New(), logger.NewNop())

	var (
		wg       sync.WaitGroup
		receipt  *payout.Receipt
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		receipt, firstErr = svc.Withdraw(context.Background(), "user-1", rail.MethodStandard)
	}()

	// The first withdrawal now holds the lock with its transfer in flight.
	<-r.entered

	_, err := svc.Withdraw(context.Background(), "user-1", rail.MethodStandard)
	assert.ErrorIs(t, err, domain.ErrWithdrawalInProgress)

	close(r.proceed)
	wg.Wait()

	require.NoError(t, firstErr)
	require.Len(t, settlement.settled, 1, "exactly one withdrawal settles")
	assert.Equal(t, int64(5000), receipt.GrossCents)
	assert.Equal(t, []int64{5000}, r.transferCalls, "only one transfer may happen")

	// The settled withdrawal drained the balance, so a retry after the
	// lock is free finds nothing to pay out.
	_, err = svc.Withdraw(context.Background(), "user-1", rail.MethodStandard)
	in, ok := domain.AsIneligibility(err)
	require.True(t, ok, "want ineligibility, got %v", err)
	assert.Contains(t, in.Reason, "no balance")
}

func TestWithdraw_InvalidMethod(t *testing.T) {
	users := &fakeUsers{user: eligibleUser()}
	settlement := &fakeSettlement{}
	r := &fakeRail{}

	_, err := newService(users, settlement, r).Withdraw(context.Background(), "user-1", "carrier-pigeon")

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "method", verr.Field)
	assert.False(t, settlement.locked)
}
