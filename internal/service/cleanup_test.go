package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/internal/vault"
)

// ---- fakes ----

type fakeAccounts struct {
	accounts []model.MailboxAccount
}

func (f *fakeAccounts) FindByID(_ context.Context, userID, accountID string) (*model.MailboxAccount, error) {
	for i := range f.accounts {
		if f.accounts[i].UserID == userID && f.accounts[i].ID == accountID {
			return &f.accounts[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) FindPrimary(_ context.Context, userID string) (*model.MailboxAccount, error) {
	for i := range f.accounts {
		if f.accounts[i].UserID == userID && f.accounts[i].IsPrimary {
			return &f.accounts[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) FindAnyConnected(_ context.Context, userID string) (*model.MailboxAccount, error) {
	for i := range f.accounts {
		if f.accounts[i].UserID == userID && f.accounts[i].IsConnected() {
			return &f.accounts[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) ListConnected(_ context.Context, userID string) ([]model.MailboxAccount, error) {
	var out []model.MailboxAccount
	for _, a := range f.accounts {
		if a.UserID == userID && a.IsConnected() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) UpdateAccessToken(_ context.Context, accountID, enc string, expiresAt time.Time) error {
	for i := range f.accounts {
		if f.accounts[i].ID == accountID {
			f.accounts[i].AccessTokenEnc = enc
			f.accounts[i].TokenExpiresAt = &expiresAt
		}
	}
	return nil
}

type fakeProvider struct {
	idsByLabel map[string][]string
	details    map[string]model.MessageSummary
	deleted    []string
	deleteRes  map[string]model.DeleteResult
}

func (f *fakeProvider) ListAllMessageIDs(_ context.Context, _ string, label string) []string {
	return f.idsByLabel[label]
}

func (f *fakeProvider) FetchDetails(_ context.Context, _ string, ids []string, accountID, sourceLabel string) []model.MessageSummary {
	var out []model.MessageSummary
	for _, id := range ids {
		if d, ok := f.details[id]; ok {
			d.AccountID = accountID
			d.SourceLabel = sourceLabel
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeProvider) DeleteMessage(_ context.Context, _ string, id string) model.DeleteResult {
	f.deleted = append(f.deleted, id)
	if res, ok := f.deleteRes[id]; ok {
		return res
	}
	return model.DeleteResult{Success: true}
}

type fakeClassifier struct {
	calls   int
	seen    []model.MessageSummary
	results []model.ClassificationResult
	err     error
}

func (f *fakeClassifier) Classify(_ context.Context, messages []model.MessageSummary) ([]model.ClassificationResult, error) {
	f.calls++
	f.seen = append(f.seen, messages...)
	return f.results, f.err
}

type fakeFeedback struct {
	byUser map[string]map[string]bool
}

func (f *fakeFeedback) GetMap(_ context.Context, userID string) (map[string]bool, error) {
	if m, ok := f.byUser[userID]; ok {
		return m, nil
	}
	return map[string]bool{}, nil
}

type fakeHistory struct {
	entries    []model.CleanupHistoryEntry
	deletedIDs map[string]struct{}
}

func (f *fakeHistory) Insert(_ context.Context, e *model.CleanupHistoryEntry) (string, error) {
	f.entries = append(f.entries, *e)
	return "h1", nil
}

func (f *fakeHistory) DeletedEmailIDs(_ context.Context, _ string) (map[string]struct{}, error) {
	if f.deletedIDs == nil {
		return map[string]struct{}{}, nil
	}
	return f.deletedIDs, nil
}

type fakeRuns struct {
	runs []model.CleanupRunSummary
}

func (f *fakeRuns) Insert(_ context.Context, run *model.CleanupRunSummary) (string, error) {
	f.runs = append(f.runs, *run)
	return "r1", nil
}

type fakeExchanger struct {
	grant *model.TokenGrant
	err   error
}

func (f *fakeExchanger) Refresh(_ context.Context, _ string) (*model.TokenGrant, error) {
	return f.grant, f.err
}

// ---- helpers ----

const testUser = "user-1"

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("test-vault-secret")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func encrypted(t *testing.T, v *vault.Vault, s string) string {
	t.Helper()
	enc, err := v.Encrypt(s)
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func connectedAccount(t *testing.T, v *vault.Vault, id string) model.MailboxAccount {
	t.Helper()
	future := time.Now().Add(time.Hour)
	return model.MailboxAccount{
		ID:              id,
		UserID:          testUser,
		Email:           id + "@example.com",
		AccessTokenEnc:  encrypted(t, v, "token-"+id),
		RefreshTokenEnc: encrypted(t, v, "refresh-"+id),
		TokenExpiresAt:  &future,
	}
}

type pipeline struct {
	cleanup  *CleanupService
	provider *fakeProvider
	spam     *fakeClassifier
	history  *fakeHistory
	runs     *fakeRuns
}

func newPipeline(t *testing.T, provider *fakeProvider, spam *fakeClassifier, feedback *fakeFeedback, history *fakeHistory) *pipeline {
	t.Helper()
	logger := zap.NewNop()
	v := testVault(t)
	accounts := &fakeAccounts{accounts: []model.MailboxAccount{connectedAccount(t, v, "acct-1")}}
	creds := NewCredentialService(accounts, v, &fakeExchanger{}, logger)
	runs := &fakeRuns{}
	executor := NewExecutor(provider, logger)
	cleanup := NewCleanupService(creds, provider, spam, feedback, history, runs, executor, logger)
	return &pipeline{cleanup: cleanup, provider: provider, spam: spam, history: history, runs: runs}
}

func activeSchedule(autoApprove bool) model.ScheduleConfig {
	return model.ScheduleConfig{
		ID:          "sched-1",
		UserID:      testUser,
		Frequency:   model.FrequencyWeekly,
		AutoApprove: autoApprove,
		IsActive:    true,
	}
}

// ---- tests ----

func TestRunForUserDeletesDefiniteSpam(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{
			model.LabelSpam:  {"m1", "m2"},
			model.LabelTrash: {"m3"},
		},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "spam@junk.example", HasListUnsubscribe: true},
			"m2": {ID: "m2", SenderEmail: "spam@junk.example"},
			"m3": {ID: "m3", SenderEmail: "friend@home.example"},
		},
	}
	spam := &fakeClassifier{results: []model.ClassificationResult{
		{ID: "m1", SpamConfidence: model.DefinitelySpam, Reasoning: "promo"},
		{ID: "m2", SpamConfidence: model.DefinitelySpam, Reasoning: "promo"},
		{ID: "m3", SpamConfidence: model.MightBeImportant, Reasoning: "personal"},
	}}
	p := newPipeline(t, provider, spam, &fakeFeedback{}, &fakeHistory{})

	stats, err := p.cleanup.RunForUser(context.Background(), activeSchedule(true))
	if err != nil {
		t.Fatalf("RunForUser() error: %v", err)
	}

	if stats.Scanned != 3 || stats.Analyzed != 3 || stats.Deleted != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Unsubscribed != 1 {
		t.Errorf("unsubscribed = %d, want 1 (only m1 has the header)", stats.Unsubscribed)
	}
	if len(provider.deleted) != 2 {
		t.Errorf("deleted = %v", provider.deleted)
	}

	if len(p.history.entries) != 2 {
		t.Fatalf("history rows = %d, want 2", len(p.history.entries))
	}
	for _, e := range p.history.entries {
		if e.UnsubscribeMethod != model.MethodScheduledAuto {
			t.Errorf("method = %s, want scheduled_auto", e.UnsubscribeMethod)
		}
		if !e.Deleted || e.UnsubscribeStatus != model.StatusSuccess {
			t.Errorf("entry = %+v", e)
		}
	}

	if len(p.runs.runs) != 1 {
		t.Fatalf("run summaries = %d, want 1", len(p.runs.runs))
	}
	run := p.runs.runs[0]
	if run.EmailsScanned != 3 || run.EmailsDeleted != 2 || run.EmailsUnsubscribed != 1 {
		t.Errorf("run = %+v", run)
	}
	if len(run.TopSenders) != 1 || run.TopSenders[0].Email != "spam@junk.example" || run.TopSenders[0].Count != 2 {
		t.Errorf("top senders = %+v", run.TopSenders)
	}
}

func TestRunForUserWithoutAutoApproveDeletesNothing(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{model.LabelSpam: {"m1"}},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "spam@junk.example"},
		},
	}
	spam := &fakeClassifier{results: []model.ClassificationResult{
		{ID: "m1", SpamConfidence: model.DefinitelySpam},
	}}
	p := newPipeline(t, provider, spam, &fakeFeedback{}, &fakeHistory{})

	stats, err := p.cleanup.RunForUser(context.Background(), activeSchedule(false))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deleted != 0 || len(provider.deleted) != 0 {
		t.Errorf("nothing should be deleted without auto approve: %+v", stats)
	}
	if len(p.runs.runs) != 1 {
		t.Error("a run summary must still be recorded")
	}
}

func TestRunForUserKnownSpamSkipsClassifier(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{model.LabelSpam: {"m1"}},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "Known@Junk.example"},
		},
	}
	spam := &fakeClassifier{}
	feedback := &fakeFeedback{byUser: map[string]map[string]bool{
		testUser: {"known@junk.example": true},
	}}
	p := newPipeline(t, provider, spam, feedback, &fakeHistory{})

	stats, err := p.cleanup.RunForUser(context.Background(), activeSchedule(true))
	if err != nil {
		t.Fatal(err)
	}

	if len(spam.seen) != 0 {
		t.Errorf("classifier saw %d messages, want 0 for known spam", len(spam.seen))
	}
	if stats.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", stats.Deleted)
	}
	if p.history.entries[0].AIReasoning != "previously marked as spam by you" {
		t.Errorf("reasoning = %q", p.history.entries[0].AIReasoning)
	}
	if p.history.entries[0].SpamConfidence != model.DefinitelySpam {
		t.Errorf("confidence = %s", p.history.entries[0].SpamConfidence)
	}
}

func TestRunForUserSafeSenderNeverAutoDeleted(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{model.LabelSpam: {"m1"}},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "newsletter@ok.example"},
		},
	}
	// Even a definitely_spam verdict must not override user feedback.
	spam := &fakeClassifier{results: []model.ClassificationResult{
		{ID: "m1", SpamConfidence: model.DefinitelySpam},
	}}
	feedback := &fakeFeedback{byUser: map[string]map[string]bool{
		testUser: {"newsletter@ok.example": false},
	}}
	p := newPipeline(t, provider, spam, feedback, &fakeHistory{})

	stats, err := p.cleanup.RunForUser(context.Background(), activeSchedule(true))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deleted != 0 || len(provider.deleted) != 0 {
		t.Errorf("safe sender was deleted: %+v", stats)
	}
}

func TestRunForUserSkipsAlreadyDeleted(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{model.LabelSpam: {"m1", "m2"}},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "a@junk.example"},
			"m2": {ID: "m2", SenderEmail: "b@junk.example"},
		},
	}
	spam := &fakeClassifier{results: []model.ClassificationResult{
		{ID: "m2", SpamConfidence: model.DefinitelySpam},
	}}
	history := &fakeHistory{deletedIDs: map[string]struct{}{"m1": {}}}
	p := newPipeline(t, provider, spam, &fakeFeedback{}, history)

	stats, err := p.cleanup.RunForUser(context.Background(), activeSchedule(true))
	if err != nil {
		t.Fatal(err)
	}

	if stats.Scanned != 2 {
		t.Errorf("scanned = %d, want 2 (counted before filtering)", stats.Scanned)
	}
	if len(spam.seen) != 1 || spam.seen[0].ID != "m2" {
		t.Errorf("classifier saw %+v, want only m2", spam.seen)
	}
	if stats.Deleted != 1 || provider.deleted[0] != "m2" {
		t.Errorf("deleted = %v", provider.deleted)
	}
}

func TestRunForUserNotFoundCountsAsDeleted(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{model.LabelSpam: {"m1"}},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "gone@junk.example"},
		},
		deleteRes: map[string]model.DeleteResult{
			"m1": {Success: true, NotFound: true},
		},
	}
	spam := &fakeClassifier{results: []model.ClassificationResult{
		{ID: "m1", SpamConfidence: model.DefinitelySpam},
	}}
	p := newPipeline(t, provider, spam, &fakeFeedback{}, &fakeHistory{})

	stats, err := p.cleanup.RunForUser(context.Background(), activeSchedule(true))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deleted != 1 {
		t.Errorf("deleted = %d, a 404 is still a successful delete", stats.Deleted)
	}
	if e := p.history.entries[0]; !e.Deleted || e.UnsubscribeStatus != model.StatusSuccess {
		t.Errorf("entry = %+v", e)
	}
}

func TestRunForUserNoAccountsRecordsEmptyRun(t *testing.T) {
	logger := zap.NewNop()
	v := testVault(t)
	creds := NewCredentialService(&fakeAccounts{}, v, &fakeExchanger{}, logger)
	provider := &fakeProvider{}
	runs := &fakeRuns{}
	cleanup := NewCleanupService(creds, provider, &fakeClassifier{}, &fakeFeedback{}, &fakeHistory{}, runs, NewExecutor(provider, logger), logger)

	stats, err := cleanup.RunForUser(context.Background(), activeSchedule(true))
	if err != nil {
		t.Fatal(err)
	}
	if !stats.Success || stats.Scanned != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(runs.runs) != 1 {
		t.Fatalf("run summaries = %d, want 1 even with no accounts", len(runs.runs))
	}
	if len(runs.runs[0].TopSenders) != 0 {
		t.Errorf("top senders = %+v", runs.runs[0].TopSenders)
	}
}

func TestScanReturnsVerdictsWithoutDeleting(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{model.LabelSpam: {"m1"}},
		details: map[string]model.MessageSummary{
			"m1": {ID: "m1", SenderEmail: "safe@ok.example"},
		},
	}
	spam := &fakeClassifier{results: []model.ClassificationResult{
		{ID: "m1", SpamConfidence: model.DefinitelySpam, Reasoning: "promo"},
	}}
	feedback := &fakeFeedback{byUser: map[string]map[string]bool{
		testUser: {"safe@ok.example": false},
	}}
	p := newPipeline(t, provider, spam, feedback, &fakeHistory{})

	result, err := p.cleanup.Scan(context.Background(), testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d", len(result.Items))
	}
	if !result.Items[0].KnownSafe {
		t.Error("expected KnownSafe flag for a not-spam sender")
	}
	if len(provider.deleted) != 0 {
		t.Error("scan must not delete anything")
	}
	if len(p.runs.runs) != 0 {
		t.Error("interactive scan must not record a run summary")
	}
}

func TestUnsubscribeRecordsHistory(t *testing.T) {
	provider := &fakeProvider{
		idsByLabel: map[string][]string{},
		details:    map[string]model.MessageSummary{},
	}
	p := newPipeline(t, provider, &fakeClassifier{}, &fakeFeedback{}, &fakeHistory{})

	reports, err := p.cleanup.Unsubscribe(context.Background(), testUser, []UnsubscribeRequest{
		{ID: "m1", AccountID: "acct-1", SenderEmail: "a@x.example", HasListUnsubscribe: true},
		{ID: "m2", AccountID: "acct-1", SenderEmail: "b@x.example", UnsubscribeLink: "https://x.example/u"},
		{ID: "m3", AccountID: "acct-1", SenderEmail: "c@x.example"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 {
		t.Fatalf("reports = %d", len(reports))
	}

	if reports[0].Method != string(model.MethodAutoHeader) || reports[0].Status != model.StatusSuccess {
		t.Errorf("reports[0] = %+v", reports[0])
	}
	if reports[1].Method != string(model.MethodWebLink) || reports[1].Status != model.StatusOpenedLink {
		t.Errorf("reports[1] = %+v", reports[1])
	}
	if reports[1].UnsubscribeLink != "https://x.example/u" {
		t.Errorf("web link should be echoed back, got %+v", reports[1])
	}
	if reports[2].Method != string(model.MethodDeleteOnly) {
		t.Errorf("reports[2] = %+v", reports[2])
	}

	if len(p.history.entries) != 3 {
		t.Errorf("history rows = %d, want 3", len(p.history.entries))
	}
	if len(provider.deleted) != 3 {
		t.Errorf("deletes = %v", provider.deleted)
	}
}
