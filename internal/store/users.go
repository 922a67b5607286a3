package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"musichub/internal/models"
)

// Activity event types accepted by the log.
const (
	ActivitySearch      = "search"
	ActivityPlay        = "play"
	ActivitySkip        = "skip"
	ActivitySearchClick = "search_click"
)

var activityTypes = map[string]bool{
	ActivitySearch:      true,
	ActivityPlay:        true,
	ActivitySkip:        true,
	ActivitySearchClick: true,
}

// ValidActivityType reports whether t names a known activity event.
func ValidActivityType(t string) bool {
	return activityTypes[t]
}

// ActivityEvent is one append-only log entry under users/{uid}/activity.
type ActivityEvent struct {
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
	SongID    string  `json:"songId,omitempty"`
	SongName  string  `json:"songName,omitempty"`
	Artist    string  `json:"artist,omitempty"`
	Language  string  `json:"language,omitempty"`
	Genre     string  `json:"genre,omitempty"`
	Query     string  `json:"query,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	SkipTime  float64 `json:"skipTime,omitempty"`
}

// UserPreferences is the resolved preferences document at users/{uid}.
// Timestamps are epoch milliseconds.
type UserPreferences struct {
	UID             string          `json:"uid"`
	Languages       []string        `json:"languages"`
	FavoriteArtists []models.Artist `json:"favoriteArtists"`
	DisplayName     string          `json:"displayName,omitempty"`
	Email           string          `json:"email,omitempty"`
	CreatedAt       int64           `json:"createdAt,omitempty"`
	UpdatedAt       int64           `json:"updatedAt,omitempty"`
}

// PreferencesUpdate is a partial preferences write. Nil slices leave
// the stored value alone.
type PreferencesUpdate struct {
	Languages       []string
	FavoriteArtists []models.Artist
	DisplayName     string
	Email           string
}

// stringList tolerates records that stored a single language as a bare
// string before the field became an array.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = stringList{one}
		}
		return nil
	}
	return errors.New("string list: unsupported shape")
}

// storedPreferences is the wire shape of users/{uid}. Unknown children
// such as the activity subtrees are ignored on decode. The language
// list lives under two keys: `languages` is current, `preferred_language`
// predates the rename and is still written for older readers.
type storedPreferences struct {
	UID             string          `json:"uid,omitempty"`
	Languages       stringList      `json:"languages,omitempty"`
	LegacyLanguages stringList      `json:"preferred_language,omitempty"`
	FavoriteArtists []models.Artist `json:"favoriteArtists,omitempty"`
	DisplayName     string          `json:"displayName,omitempty"`
	Email           string          `json:"email,omitempty"`
	CreatedAt       int64           `json:"createdAt,omitempty"`
	UpdatedAt       int64           `json:"updatedAt,omitempty"`
}

func (sp *storedPreferences) resolve(uid string) *UserPreferences {
	langs := []string(sp.Languages)
	if len(langs) == 0 {
		langs = []string(sp.LegacyLanguages)
	}
	return &UserPreferences{
		UID:             uid,
		Languages:       langs,
		FavoriteArtists: sp.FavoriteArtists,
		DisplayName:     sp.DisplayName,
		Email:           sp.Email,
		CreatedAt:       sp.CreatedAt,
		UpdatedAt:       sp.UpdatedAt,
	}
}

// SongAggregate is the per-song rollup at user_activity/{uid}/{songId}
// that the profile builder and reranker read. Affinity folds the
// counters into one signal: plays pull it up, skips push it down
// harder, search clicks count as weak interest.
type SongAggregate struct {
	PlayCount     int64   `json:"play_count"`
	SkipCount     int64   `json:"skip_count"`
	SearchClicked int64   `json:"search_clicked"`
	LastPlayed    int64   `json:"last_played,omitempty"`
	Affinity      float64 `json:"affinity"`
	SongName      string  `json:"songName,omitempty"`
	Artist        string  `json:"artist,omitempty"`
	Language      string  `json:"language,omitempty"`
}

func affinityOf(plays, clicks, skips int64) float64 {
	return float64(plays)*2 + float64(clicks)*0.75 - float64(skips)*2.5
}

// ListeningRecord is the per-song counter node under
// users/{uid}/listening_history.
type ListeningRecord struct {
	SongID      string `json:"songId"`
	SongName    string `json:"songName,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Language    string `json:"language,omitempty"`
	Genre       string `json:"genre,omitempty"`
	PlayCount   int64  `json:"playCount"`
	SkipCount   int64  `json:"skipCount"`
	ClickCount  int64  `json:"clickCount"`
	LastPlayed  int64  `json:"lastPlayed,omitempty"`
	LastSkipped int64  `json:"lastSkipped,omitempty"`
	LastClicked int64  `json:"lastClicked,omitempty"`
}

// SearchRecord is the per-query counter node under
// users/{uid}/search_history, keyed by SafeKey(query).
type SearchRecord struct {
	Query        string `json:"query"`
	Count        int64  `json:"count"`
	LastSearched int64  `json:"lastSearched"`
}

// SongMark is the liked_songs / skipped_songs projection entry.
type SongMark struct {
	SongID   string `json:"songId"`
	SongName string `json:"songName,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Language string `json:"language,omitempty"`
	At       int64  `json:"at"`
}

// UserStore layers the user persistence operations over a tree client.
type UserStore struct {
	tree Client
}

func NewUserStore(tree Client) *UserStore {
	return &UserStore{tree: tree}
}

func userPath(uid string) string {
	return "users/" + SafeKey(uid)
}

func aggregatePath(uid, songID string) string {
	return "user_activity/" + SafeKey(uid) + "/" + SafeKey(songID)
}

// Preferences loads users/{uid}. A user node that exists but carries
// neither languages nor favorite artists counts as absent, which
// happens when activity was logged before preferences were ever saved.
func (s *UserStore) Preferences(ctx context.Context, uid string) (*UserPreferences, error) {
	var stored storedPreferences
	if err := s.tree.Get(ctx, userPath(uid), &stored); err != nil {
		return nil, err
	}
	prefs := stored.resolve(uid)
	if len(prefs.Languages) == 0 && len(prefs.FavoriteArtists) == 0 {
		return nil, ErrNotFound
	}
	return prefs, nil
}

// SavePreferences merges the update into users/{uid} and returns the
// resolved document. Languages are written under both historical keys.
func (s *UserStore) SavePreferences(ctx context.Context, uid string, update PreferencesUpdate) (*UserPreferences, error) {
	var stored storedPreferences
	err := s.tree.Get(ctx, userPath(uid), &stored)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	children := map[string]any{
		"uid":       uid,
		"updatedAt": now,
	}
	if stored.CreatedAt == 0 {
		children["createdAt"] = now
		stored.CreatedAt = now
	}
	if update.Languages != nil {
		children["languages"] = update.Languages
		children["preferred_language"] = update.Languages
		stored.Languages = update.Languages
		stored.LegacyLanguages = update.Languages
	}
	if update.FavoriteArtists != nil {
		children["favoriteArtists"] = update.FavoriteArtists
		stored.FavoriteArtists = update.FavoriteArtists
	}
	if update.DisplayName != "" {
		children["displayName"] = update.DisplayName
		stored.DisplayName = update.DisplayName
	}
	if update.Email != "" {
		children["email"] = update.Email
		stored.Email = update.Email
	}
	if err := s.tree.Update(ctx, userPath(uid), children); err != nil {
		return nil, err
	}
	stored.UpdatedAt = now
	return stored.resolve(uid), nil
}

// LogActivity appends the event to users/{uid}/activity and fans out to
// the derived nodes. The append is the durable anchor and its failure
// is the only one surfaced; derived updates run concurrently as
// independent transactions, and a lost one is repaired by the next
// event for the same key.
func (s *UserStore) LogActivity(ctx context.Context, uid string, event ActivityEvent) (string, error) {
	if !ValidActivityType(event.Type) {
		return "", &StoreError{Op: "log", Path: userPath(uid) + "/activity", Err: fmt.Errorf("unknown activity type %q", event.Type)}
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	pushID, err := s.tree.Push(ctx, userPath(uid)+"/activity", event)
	if err != nil {
		return "", err
	}

	var wg sync.WaitGroup
	run := func(node string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				slog.Warn("derived activity update failed",
					"node", node,
					"uid", uid,
					"type", event.Type,
					"error", err)
			}
		}()
	}
	if event.Type == ActivitySearch && event.Query != "" {
		run("search_history", func() error { return s.bumpSearchHistory(ctx, uid, event) })
	}
	if event.SongID != "" {
		run("song_aggregate", func() error { return s.bumpSongAggregate(ctx, uid, event) })
		run("listening_history", func() error { return s.bumpListeningHistory(ctx, uid, event) })
	}
	wg.Wait()
	return pushID, nil
}

func (s *UserStore) bumpSearchHistory(ctx context.Context, uid string, event ActivityEvent) error {
	path := userPath(uid) + "/search_history/" + SafeKey(event.Query)
	return s.tree.Transact(ctx, path, func(current json.RawMessage) (any, error) {
		var rec SearchRecord
		if current != nil {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, err
			}
		}
		rec.Query = event.Query
		rec.Count++
		rec.LastSearched = event.Timestamp
		return &rec, nil
	})
}

func (s *UserStore) bumpSongAggregate(ctx context.Context, uid string, event ActivityEvent) error {
	return s.tree.Transact(ctx, aggregatePath(uid, event.SongID), func(current json.RawMessage) (any, error) {
		var agg SongAggregate
		if current != nil {
			if err := json.Unmarshal(current, &agg); err != nil {
				return nil, err
			}
		}
		switch event.Type {
		case ActivityPlay:
			agg.PlayCount++
			agg.LastPlayed = event.Timestamp
		case ActivitySkip:
			agg.SkipCount++
		case ActivitySearchClick:
			agg.SearchClicked++
		}
		agg.Affinity = affinityOf(agg.PlayCount, agg.SearchClicked, agg.SkipCount)
		if event.SongName != "" {
			agg.SongName = event.SongName
		}
		if event.Artist != "" {
			agg.Artist = event.Artist
		}
		if event.Language != "" {
			agg.Language = event.Language
		}
		return &agg, nil
	})
}

func (s *UserStore) bumpListeningHistory(ctx context.Context, uid string, event ActivityEvent) error {
	path := userPath(uid) + "/listening_history/" + SafeKey(event.SongID)
	err := s.tree.Transact(ctx, path, func(current json.RawMessage) (any, error) {
		var rec ListeningRecord
		if current != nil {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, err
			}
		}
		rec.SongID = event.SongID
		switch event.Type {
		case ActivityPlay:
			rec.PlayCount++
			rec.LastPlayed = event.Timestamp
		case ActivitySkip:
			rec.SkipCount++
			rec.LastSkipped = event.Timestamp
		case ActivitySearchClick:
			rec.ClickCount++
			rec.LastClicked = event.Timestamp
		}
		if event.SongName != "" {
			rec.SongName = event.SongName
		}
		if event.Artist != "" {
			rec.Artist = event.Artist
		}
		if event.Language != "" {
			rec.Language = event.Language
		}
		if event.Genre != "" {
			rec.Genre = event.Genre
		}
		return &rec, nil
	})
	if err != nil {
		return err
	}

	mark := SongMark{
		SongID:   event.SongID,
		SongName: event.SongName,
		Artist:   event.Artist,
		Language: event.Language,
		At:       event.Timestamp,
	}
	switch event.Type {
	case ActivityPlay:
		return s.tree.Set(ctx, userPath(uid)+"/liked_songs/"+SafeKey(event.SongID), mark)
	case ActivitySkip:
		return s.tree.Set(ctx, userPath(uid)+"/skipped_songs/"+SafeKey(event.SongID), mark)
	}
	return nil
}

// RecentActivity returns up to n log entries, most recent first. An
// empty log yields an empty slice, not an error.
func (s *UserStore) RecentActivity(ctx context.Context, uid string, n int) ([]ActivityEvent, error) {
	byKey := make(map[string]ActivityEvent)
	if err := s.tree.GetLast(ctx, userPath(uid)+"/activity", n, &byKey); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	events := make([]ActivityEvent, 0, len(keys))
	for _, k := range keys {
		events = append(events, byKey[k])
	}
	return events, nil
}

// SongAggregates loads the full per-song rollup map for uid, keyed by
// the raw song ID.
func (s *UserStore) SongAggregates(ctx context.Context, uid string) (map[string]SongAggregate, error) {
	byKey := make(map[string]SongAggregate)
	err := s.tree.Get(ctx, "user_activity/"+SafeKey(uid), &byKey)
	if errors.Is(err, ErrNotFound) {
		return map[string]SongAggregate{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]SongAggregate, len(byKey))
	for k, agg := range byKey {
		out[UnsafeKey(k)] = agg
	}
	return out, nil
}

// SkippedSongIDs returns the ids in the skipped_songs projection,
// capped at limit, most recently skipped first.
func (s *UserStore) SkippedSongIDs(ctx context.Context, uid string, limit int) ([]string, error) {
	byKey := make(map[string]SongMark)
	err := s.tree.Get(ctx, userPath(uid)+"/skipped_songs", &byKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	marks := make([]SongMark, 0, len(byKey))
	for _, m := range byKey {
		marks = append(marks, m)
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].At > marks[j].At })
	if limit > 0 && len(marks) > limit {
		marks = marks[:limit]
	}
	ids := make([]string, 0, len(marks))
	for _, m := range marks {
		if m.SongID != "" {
			ids = append(ids, m.SongID)
		}
	}
	return ids, nil
}
