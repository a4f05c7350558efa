package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cappiels/chat-notify-api/internal/models"
)

// In-memory implementations of the repository interfaces. They carry the same
// semantics as the Postgres versions (upsert keys, zero clamps, claim
// ordering) and back the package tests; nothing here survives a restart.

type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.DeviceToken // key: userID + "\x00" + token
	now    func() time.Time
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		tokens: make(map[string]*models.DeviceToken),
		now:    time.Now,
	}
}

func tokenKey(userID, token string) string {
	return userID + "\x00" + token
}

func (m *MemoryTokenRepository) Register(_ context.Context, userID, token string, platform models.Platform, deviceName string) (models.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token = strings.TrimSpace(token)

	// Single ownership: the same token under any other user goes inactive.
	for _, other := range m.tokens {
		if other.Token == token && other.UserID != userID && other.Active {
			other.Active = false
			other.UpdatedAt = m.now()
		}
	}

	key := tokenKey(userID, token)
	if existing, ok := m.tokens[key]; ok {
		existing.Platform = platform
		existing.DeviceName = deviceName
		existing.Active = true
		existing.LastUsedAt = m.now()
		existing.UpdatedAt = m.now()
		return *existing, nil
	}
	tok := &models.DeviceToken{
		ID:         uuid.NewString(),
		UserID:     userID,
		Token:      token,
		Platform:   platform,
		DeviceName: deviceName,
		Active:     true,
		LastUsedAt: m.now(),
		CreatedAt:  m.now(),
		UpdatedAt:  m.now(),
	}
	m.tokens[key] = tok
	return *tok, nil
}

func (m *MemoryTokenRepository) Unregister(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.tokens[tokenKey(userID, token)]; ok {
		tok.Active = false
		tok.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemoryTokenRepository) Refresh(ctx context.Context, userID, oldToken, newToken string, platform models.Platform, deviceName string) (models.DeviceToken, error) {
	if err := m.Unregister(ctx, userID, oldToken); err != nil {
		return models.DeviceToken{}, err
	}
	return m.Register(ctx, userID, newToken, platform, deviceName)
}

func (m *MemoryTokenRepository) ActiveForUser(_ context.Context, userID string) ([]models.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tokens []models.DeviceToken
	for _, tok := range m.tokens {
		if tok.UserID == userID && tok.Active {
			tokens = append(tokens, *tok)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.Before(tokens[j].CreatedAt) })
	return tokens, nil
}

func (m *MemoryTokenRepository) Deactivate(ctx context.Context, userID, token string) error {
	return m.Unregister(ctx, userID, token)
}

func (m *MemoryTokenRepository) Touch(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.tokens[tokenKey(userID, token)]; ok && tok.Active {
		tok.LastUsedAt = m.now()
		tok.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemoryTokenRepository) DeactivateIdle(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected int64
	for _, tok := range m.tokens {
		if tok.Active && tok.LastUsedAt.Before(before) {
			tok.Active = false
			tok.UpdatedAt = m.now()
			affected++
		}
	}
	return affected, nil
}

type MemoryPreferenceRepository struct {
	mu      sync.Mutex
	records map[string]*models.PreferenceRecord // key: userID + ws + thread
	now     func() time.Time
}

func NewMemoryPreferenceRepository() *MemoryPreferenceRepository {
	return &MemoryPreferenceRepository{
		records: make(map[string]*models.PreferenceRecord),
		now:     time.Now,
	}
}

func scopeKey(userID string, workspaceID, threadID *string) string {
	ws, thread := "", ""
	if workspaceID != nil {
		ws = *workspaceID
	}
	if threadID != nil {
		thread = *threadID
	}
	return userID + "\x00" + ws + "\x00" + thread
}

func (m *MemoryPreferenceRepository) GetScope(_ context.Context, userID string, workspaceID, threadID *string) (models.PreferenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[scopeKey(userID, workspaceID, threadID)]; ok {
		return *rec, nil
	}
	return models.PreferenceRecord{}, sql.ErrNoRows
}

func (m *MemoryPreferenceRepository) Tiers(_ context.Context, userID string, workspaceID, threadID *string) (PreferenceTiers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tiers PreferenceTiers
	if rec, ok := m.records[scopeKey(userID, nil, nil)]; ok {
		global := *rec
		tiers.Global = &global
	}
	if workspaceID != nil {
		if rec, ok := m.records[scopeKey(userID, workspaceID, nil)]; ok {
			workspace := *rec
			tiers.Workspace = &workspace
		}
		if threadID != nil {
			if rec, ok := m.records[scopeKey(userID, workspaceID, threadID)]; ok {
				thread := *rec
				tiers.Thread = &thread
			}
		}
	}
	return tiers, nil
}

func (m *MemoryPreferenceRepository) Upsert(_ context.Context, patch models.PreferenceRecord) (models.PreferenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := scopeKey(patch.UserID, patch.WorkspaceID, patch.ThreadID)
	existing, ok := m.records[key]
	if !ok {
		rec := patch
		rec.ID = uuid.NewString()
		rec.CreatedAt = m.now()
		rec.UpdatedAt = m.now()
		m.records[key] = &rec
		return rec, nil
	}
	mergePatch(existing, patch)
	existing.UpdatedAt = m.now()
	return *existing, nil
}

func (m *MemoryPreferenceRepository) Unmute(_ context.Context, userID string, workspaceID, threadID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := scopeKey(userID, workspaceID, threadID)
	none := models.MuteNone
	if rec, ok := m.records[key]; ok {
		rec.MuteLevel = &none
		rec.MuteUntil = nil
		rec.UpdatedAt = m.now()
		return nil
	}
	m.records[key] = &models.PreferenceRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		ThreadID:    threadID,
		MuteLevel:   &none,
		CreatedAt:   m.now(),
		UpdatedAt:   m.now(),
	}
	return nil
}

func (m *MemoryPreferenceRepository) ClearExpiredMutes(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected int64
	for _, rec := range m.records {
		if rec.MuteUntil != nil && rec.MuteUntil.Before(now) {
			rec.MuteLevel = nil
			rec.MuteUntil = nil
			rec.UpdatedAt = m.now()
			affected++
		}
	}
	return affected, nil
}

// mergePatch copies every non-nil field of patch onto dst, mirroring the
// COALESCE behavior of the Postgres upsert.
func mergePatch(dst *models.PreferenceRecord, patch models.PreferenceRecord) {
	if patch.PushEnabled != nil {
		dst.PushEnabled = patch.PushEnabled
	}
	if patch.SoundEnabled != nil {
		dst.SoundEnabled = patch.SoundEnabled
	}
	if patch.BadgeEnabled != nil {
		dst.BadgeEnabled = patch.BadgeEnabled
	}
	if patch.ShowPreview != nil {
		dst.ShowPreview = patch.ShowPreview
	}
	if patch.NotifyMentions != nil {
		dst.NotifyMentions = patch.NotifyMentions
	}
	if patch.NotifyDirectMessages != nil {
		dst.NotifyDirectMessages = patch.NotifyDirectMessages
	}
	if patch.NotifyThreadReplies != nil {
		dst.NotifyThreadReplies = patch.NotifyThreadReplies
	}
	if patch.NotifyTaskAssigned != nil {
		dst.NotifyTaskAssigned = patch.NotifyTaskAssigned
	}
	if patch.NotifyTaskDue != nil {
		dst.NotifyTaskDue = patch.NotifyTaskDue
	}
	if patch.NotifyTaskCompleted != nil {
		dst.NotifyTaskCompleted = patch.NotifyTaskCompleted
	}
	if patch.NotifyWorkspaceInvites != nil {
		dst.NotifyWorkspaceInvites = patch.NotifyWorkspaceInvites
	}
	if patch.NotifyEveryMessage != nil {
		dst.NotifyEveryMessage = patch.NotifyEveryMessage
	}
	if patch.MuteLevel != nil {
		dst.MuteLevel = patch.MuteLevel
	}
	if patch.MuteUntil != nil {
		dst.MuteUntil = patch.MuteUntil
	}
	if patch.DNDEnabled != nil {
		dst.DNDEnabled = patch.DNDEnabled
	}
	if patch.DNDStart != nil {
		dst.DNDStart = patch.DNDStart
	}
	if patch.DNDEnd != nil {
		dst.DNDEnd = patch.DNDEnd
	}
	if patch.DNDTimezone != nil {
		dst.DNDTimezone = patch.DNDTimezone
	}
	if patch.DNDAllowMentions != nil {
		dst.DNDAllowMentions = patch.DNDAllowMentions
	}
	if patch.QuietEnabled != nil {
		dst.QuietEnabled = patch.QuietEnabled
	}
	if patch.QuietStart != nil {
		dst.QuietStart = patch.QuietStart
	}
	if patch.QuietEnd != nil {
		dst.QuietEnd = patch.QuietEnd
	}
	if patch.QuietTimezone != nil {
		dst.QuietTimezone = patch.QuietTimezone
	}
	if patch.QuietWeekendsOnly != nil {
		dst.QuietWeekendsOnly = patch.QuietWeekendsOnly
	}
}

type MemoryQueueRepository struct {
	mu      sync.Mutex
	intents map[string]*models.NotificationIntent
	now     func() time.Time
	seq     int
}

func NewMemoryQueueRepository() *MemoryQueueRepository {
	return &MemoryQueueRepository{
		intents: make(map[string]*models.NotificationIntent),
		now:     time.Now,
	}
}

func (m *MemoryQueueRepository) Insert(_ context.Context, intent models.NotificationIntent) (models.NotificationIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent.ID = uuid.NewString()
	intent.Status = models.StatusPending
	// Tick the clock per insert so creation order is a total order even
	// within one wall-clock instant.
	m.seq++
	intent.CreatedAt = m.now().Add(time.Duration(m.seq) * time.Nanosecond)
	m.intents[intent.ID] = &intent
	return intent, nil
}

func (m *MemoryQueueRepository) ClaimBatch(_ context.Context, limit int, now time.Time) ([]models.NotificationIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 25
	}
	var due []*models.NotificationIntent
	for _, intent := range m.intents {
		if intent.Status == models.StatusPending && !intent.ScheduledFor.After(now) {
			due = append(due, intent)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority == models.PriorityHigh
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]models.NotificationIntent, 0, len(due))
	for _, intent := range due {
		intent.Status = models.StatusProcessing
		claimed = append(claimed, *intent)
	}
	return claimed, nil
}

func (m *MemoryQueueRepository) Finish(_ context.Context, id string, status models.IntentStatus, retryDelta int, deviceErrors []models.DeviceFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return sql.ErrNoRows
	}
	intent.Status = status
	intent.RetryCount += retryDelta
	intent.DeviceErrors = deviceErrors
	processed := m.now()
	intent.ProcessedAt = &processed
	return nil
}

func (m *MemoryQueueRepository) Get(_ context.Context, id string) (models.NotificationIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if intent, ok := m.intents[id]; ok {
		return *intent, nil
	}
	return models.NotificationIntent{}, sql.ErrNoRows
}

func (m *MemoryQueueRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, intent := range m.intents {
		terminal := intent.Status == models.StatusSent ||
			intent.Status == models.StatusFailed ||
			intent.Status == models.StatusCancelled
		if terminal && intent.CreatedAt.Before(cutoff) {
			delete(m.intents, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many items the queue currently holds, terminal included.
func (m *MemoryQueueRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intents)
}

type MemoryBadgeRepository struct {
	mu     sync.Mutex
	counts map[string]*models.BadgeCount // key: userID + "\x00" + workspaceID
	now    func() time.Time
}

func NewMemoryBadgeRepository() *MemoryBadgeRepository {
	return &MemoryBadgeRepository{
		counts: make(map[string]*models.BadgeCount),
		now:    time.Now,
	}
}

func (m *MemoryBadgeRepository) Adjust(_ context.Context, userID, workspaceID string, category models.BadgeCategory, delta int) (models.BadgeCount, error) {
	if _, err := badgeColumn(category); err != nil {
		return models.BadgeCount{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "\x00" + workspaceID
	count, ok := m.counts[key]
	if !ok {
		count = &models.BadgeCount{UserID: userID, WorkspaceID: workspaceID}
		m.counts[key] = count
	}
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	switch category {
	case models.BadgeUnreadMessages:
		count.UnreadMessages = clamp(count.UnreadMessages + delta)
	case models.BadgeMentions:
		count.Mentions = clamp(count.Mentions + delta)
	case models.BadgeDirectMessages:
		count.DirectMessages = clamp(count.DirectMessages + delta)
	case models.BadgeTasks:
		count.Tasks = clamp(count.Tasks + delta)
	}
	count.UpdatedAt = m.now()
	return *count, nil
}

func (m *MemoryBadgeRepository) Get(_ context.Context, userID, workspaceID string) (models.BadgeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count, ok := m.counts[userID+"\x00"+workspaceID]; ok {
		return *count, nil
	}
	return models.BadgeCount{UserID: userID, WorkspaceID: workspaceID}, nil
}

func (m *MemoryBadgeRepository) Total(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, count := range m.counts {
		if count.UserID == userID {
			total += count.Sum()
		}
	}
	return total, nil
}

func (m *MemoryBadgeRepository) ListForUser(_ context.Context, userID string) ([]models.BadgeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts []models.BadgeCount
	for _, count := range m.counts {
		if count.UserID == userID {
			counts = append(counts, *count)
		}
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].WorkspaceID < counts[j].WorkspaceID })
	return counts, nil
}

type MemoryDeliveryLogRepository struct {
	mu      sync.Mutex
	entries []models.DeliveryLogEntry
	now     func() time.Time
}

func NewMemoryDeliveryLogRepository() *MemoryDeliveryLogRepository {
	return &MemoryDeliveryLogRepository{now: time.Now}
}

func (m *MemoryDeliveryLogRepository) Insert(_ context.Context, entry models.DeliveryLogEntry) (models.DeliveryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = m.now()
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *MemoryDeliveryLogRepository) ListForIntent(_ context.Context, intentID string) ([]models.DeliveryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []models.DeliveryLogEntry
	for _, entry := range m.entries {
		if entry.IntentID == intentID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (m *MemoryDeliveryLogRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var removed int64
	for _, entry := range m.entries {
		if entry.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept
	return removed, nil
}
