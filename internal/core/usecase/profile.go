package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

type ProfileUseCase struct {
	store ports.ProfileStore
	now   func() time.Time

	mu     sync.Mutex
	folded map[string]struct{}
}

func NewProfileUseCase(store ports.ProfileStore) *ProfileUseCase {
	return &ProfileUseCase{store: store, now: time.Now, folded: make(map[string]struct{})}
}

// Fold merges an analysis result into the profile of the customer it
// belongs to. Identity-bearing results name the customer directly and bind
// the folder to them; other results reuse the folder's binding. It reports
// the customer id and whether anything was folded.
func (uc *ProfileUseCase) Fold(folderID string, result domain.AnalysisResult) (string, bool) {
	return uc.foldAt(folderID, result, uc.now())
}

// FoldEntry folds a stored ledger entry once. Later calls with the same
// entry are no-ops; a re-analysis carries a new date and folds again.
func (uc *ProfileUseCase) FoldEntry(folderID string, entry domain.LedgerEntry) (string, bool) {
	if !uc.claim(folderID, entry) {
		return "", false
	}
	at := entry.AnalysisDate
	if at.IsZero() {
		at = uc.now()
	}
	return uc.foldAt(folderID, entry.Results, at)
}

// FoldLedger folds the entries of a client's ledger not folded yet, such as
// results written by the background worker. Identity-bearing entries go first
// so the folder is bound before the rest reuse the binding, then by analysis
// date. It returns the number of entries folded.
func (uc *ProfileUseCase) FoldLedger(folderID string, ledger domain.Ledger) int {
	entries := make([]domain.LedgerEntry, 0, len(ledger))
	for _, entry := range ledger {
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		iID, jID := entries[i].Results.CustomerID() != "", entries[j].Results.CustomerID() != ""
		if iID != jID {
			return iID
		}
		if !entries[i].AnalysisDate.Equal(entries[j].AnalysisDate) {
			return entries[i].AnalysisDate.Before(entries[j].AnalysisDate)
		}
		return entries[i].DocumentID < entries[j].DocumentID
	})

	folded := 0
	for _, entry := range entries {
		if _, ok := uc.FoldEntry(folderID, entry); ok {
			folded++
		}
	}
	return folded
}

func (uc *ProfileUseCase) claim(folderID string, entry domain.LedgerEntry) bool {
	key := folderID + "/" + entry.DocumentID + "@" + strconv.FormatInt(entry.AnalysisDate.UnixNano(), 10)
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.folded[key]; ok {
		return false
	}
	uc.folded[key] = struct{}{}
	return true
}

func (uc *ProfileUseCase) foldAt(folderID string, result domain.AnalysisResult, now time.Time) (string, bool) {
	customerID := result.CustomerID()
	if customerID != "" {
		if folderID != "" {
			uc.store.BindFolder(folderID, customerID)
		}
	} else if folderID != "" {
		bound, ok := uc.store.CustomerForFolder(folderID)
		if !ok {
			return "", false
		}
		customerID = bound
	}
	if customerID == "" {
		slog.Debug("profile_fold_skipped", "folder_id", folderID, "type", result.Type)
		return "", false
	}

	uc.store.Update(customerID, func(profile *domain.CustomerProfile) {
		if profile.PersonalInfo.ID == "" {
			profile.PersonalInfo.ID = customerID
		}
		profile.Apply(result, now)
	})
	return customerID, true
}

func (uc *ProfileUseCase) Get(_ context.Context, customerID string) (domain.CustomerProfile, error) {
	profile, ok := uc.store.Get(customerID)
	if !ok {
		return domain.CustomerProfile{}, domain.WrapError(domain.ErrNotFound, "get customer profile", fmt.Errorf("no profile for customer %q", customerID))
	}
	return profile, nil
}

func (uc *ProfileUseCase) List(_ context.Context) ([]domain.CustomerProfile, error) {
	return uc.store.List(), nil
}
