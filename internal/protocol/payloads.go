package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/timex"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CollectionPayload is the wire projection of a collection.
//
// OwnerID tells the authority whether the pushing device considers itself the
// owner (its own user id) or a shared collaborator (the sharer's id). On pull
// it drives the sharedBy derivation.
type CollectionPayload struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
	IsPublic    bool   `json:"isPublic"`
	WordCount   int64  `json:"wordCount"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	SyncVersion int64  `json:"syncVersion"`
}

// VocabularyPayload is the wire projection of a vocabulary item.
type VocabularyPayload struct {
	ID               string               `json:"id" validate:"required"`
	Word             string               `json:"word"`
	WordType         string               `json:"wordType,omitempty"`
	Level            string               `json:"level,omitempty"`
	IPA              string               `json:"ipa,omitempty"`
	AudioURL         *string              `json:"audioUrl,omitempty"`
	Concept          *string              `json:"concept,omitempty"`
	Language         string               `json:"language,omitempty"`
	CollectionID     string               `json:"collectionId" validate:"required"`
	Definitions      []models.Definition  `json:"definitions,omitempty"`
	ExampleSentences []string             `json:"exampleSentences,omitempty"`
	Topics           []string             `json:"topics,omitempty"`
	Tags             []string             `json:"tags,omitempty"`
	RelatedWords     []models.RelatedWord `json:"relatedWords,omitempty"`
	CreatedAt        int64                `json:"createdAt"`
	UpdatedAt        int64                `json:"updatedAt"`
	SyncVersion      int64                `json:"syncVersion"`
}

// TermPayload is the wire projection of a topic or tag row.
type TermPayload struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	SyncVersion int64  `json:"syncVersion"`
}

// SettingsPayload is the wire projection of the learning-settings singleton.
type SettingsPayload struct {
	ID                  string `json:"id" validate:"required"`
	Algorithm           string `json:"algorithm,omitempty"`
	NewWordsPerDay      int64  `json:"newWordsPerDay"`
	DailyReviewLimit    int64  `json:"dailyReviewLimit"`
	AutoAdvanceSeconds  int64  `json:"autoAdvanceSeconds"`
	ShowFailedInSession bool   `json:"showFailedInSession"`
	ReminderEnabled     bool   `json:"reminderEnabled"`
	ReminderTime        string `json:"reminderTime,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
	UpdatedAt           int64  `json:"updatedAt"`
	SyncVersion         int64  `json:"syncVersion"`
}

// SharePayload is the wire projection of a sharing grant.
type SharePayload struct {
	ID           string `json:"id" validate:"required"`
	CollectionID string `json:"collectionId" validate:"required"`
	GranteeID    string `json:"granteeId" validate:"required"`
	Permission   string `json:"permission,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	SyncVersion  int64  `json:"syncVersion"`
}

// ProgressPayload is the wire projection of a topic-progress aggregate.
type ProgressPayload struct {
	ID              string `json:"id" validate:"required"`
	Topic           string `json:"topic" validate:"required"`
	Language        string `json:"language,omitempty"`
	TotalReviews    int64  `json:"totalReviews"`
	CorrectCount    int64  `json:"correctCount"`
	IncorrectCount  int64  `json:"incorrectCount"`
	CurrentStreak   int64  `json:"currentStreak"`
	LastPracticedAt *int64 `json:"lastPracticedAt,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	SyncVersion     int64  `json:"syncVersion"`
}

// CollectionChange projects a dirty collection into an upsert change record.
// ownerID is the resolved owner stamp: the collection's sharer when it was
// shared to this user, else the pushing user's id.
func CollectionChange(c *models.Collection, ownerID string) (ChangeRecord, error) {
	p := CollectionPayload{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Language:    c.Language,
		OwnerID:     ownerID,
		IsPublic:    c.IsPublic,
		WordCount:   c.WordCount,
		CreatedAt:   timex.Unix(c.CreatedAt),
		UpdatedAt:   timex.Unix(c.UpdatedAt),
		SyncVersion: c.SyncVersion,
	}
	return upsertChange(TableCollections, c.ID, c.SyncVersion, p)
}

// VocabularyChange projects a dirty vocabulary into an upsert change record.
func VocabularyChange(v *models.Vocabulary) (ChangeRecord, error) {
	p := VocabularyPayload{
		ID:               v.ID,
		Word:             v.Word,
		WordType:         v.WordType,
		Level:            v.Level,
		IPA:              v.IPA,
		AudioURL:         v.AudioURL,
		Concept:          v.Concept,
		Language:         v.Language,
		CollectionID:     v.CollectionID,
		Definitions:      v.Definitions,
		ExampleSentences: v.ExampleSentences,
		Topics:           v.Topics,
		Tags:             v.Tags,
		RelatedWords:     v.RelatedWords,
		CreatedAt:        timex.Unix(v.CreatedAt),
		UpdatedAt:        timex.Unix(v.UpdatedAt),
		SyncVersion:      v.SyncVersion,
	}
	return upsertChange(TableVocabularies, v.ID, v.SyncVersion, p)
}

// TermChange projects a dirty taxonomy term into an upsert change record for
// the given wire table (TableTopics or TableTags).
func TermChange(tableName string, t *models.Term) (ChangeRecord, error) {
	p := TermPayload{
		ID:          t.ID,
		Name:        t.Name,
		CreatedAt:   timex.Unix(t.CreatedAt),
		UpdatedAt:   timex.Unix(t.UpdatedAt),
		SyncVersion: t.SyncVersion,
	}
	return upsertChange(tableName, t.ID, t.SyncVersion, p)
}

// SettingsChange projects the dirty settings singleton into an upsert change.
func SettingsChange(s *models.LearningSettings) (ChangeRecord, error) {
	p := SettingsPayload{
		ID:                  s.ID,
		Algorithm:           s.Algorithm,
		NewWordsPerDay:      s.NewWordsPerDay,
		DailyReviewLimit:    s.DailyReviewLimit,
		AutoAdvanceSeconds:  s.AutoAdvanceSeconds,
		ShowFailedInSession: s.ShowFailedInSession,
		ReminderEnabled:     s.ReminderEnabled,
		ReminderTime:        s.ReminderTime,
		CreatedAt:           timex.Unix(s.CreatedAt),
		UpdatedAt:           timex.Unix(s.UpdatedAt),
		SyncVersion:         s.SyncVersion,
	}
	return upsertChange(TableLearningSettings, s.ID, s.SyncVersion, p)
}

// ShareChange projects a dirty sharing grant into an upsert change record.
func ShareChange(s *models.CollectionShare) (ChangeRecord, error) {
	p := SharePayload{
		ID:           s.ID,
		CollectionID: s.CollectionID,
		GranteeID:    s.GranteeID,
		Permission:   s.Permission,
		CreatedAt:    timex.Unix(s.CreatedAt),
		UpdatedAt:    timex.Unix(s.UpdatedAt),
		SyncVersion:  s.SyncVersion,
	}
	return upsertChange(TableCollectionShares, s.ID, s.SyncVersion, p)
}

// ProgressChange projects a dirty progress aggregate into an upsert change.
func ProgressChange(p *models.TopicProgress) (ChangeRecord, error) {
	pl := ProgressPayload{
		ID:              p.ID,
		Topic:           p.Topic,
		Language:        p.Language,
		TotalReviews:    p.TotalReviews,
		CorrectCount:    p.CorrectCount,
		IncorrectCount:  p.IncorrectCount,
		CurrentStreak:   p.CurrentStreak,
		LastPracticedAt: timex.UnixPtr(p.LastPracticedAt),
		CreatedAt:       timex.Unix(p.CreatedAt),
		UpdatedAt:       timex.Unix(p.UpdatedAt),
		SyncVersion:     p.SyncVersion,
	}
	return upsertChange(TableTopicProgress, p.ID, p.SyncVersion, pl)
}

// DeleteChange builds a tombstone change record. The payload is intentionally
// empty: only presence and version matter to the server.
func DeleteChange(tableName, rowID string, version int64) ChangeRecord {
	return ChangeRecord{
		TableName: tableName,
		RowID:     rowID,
		Data:      json.RawMessage(`{}`),
		Version:   version,
		Deleted:   true,
	}
}

func upsertChange(tableName, rowID string, version int64, payload any) (ChangeRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("failed to encode %s payload: %w", tableName, err)
	}
	return ChangeRecord{
		TableName: tableName,
		RowID:     rowID,
		Data:      data,
		Version:   version,
		Deleted:   false,
	}, nil
}

// DecodeCollection parses and validates a collections payload.
func DecodeCollection(data json.RawMessage) (*CollectionPayload, error) {
	return decodePayload[CollectionPayload](TableCollections, data)
}

// DecodeVocabulary parses and validates a vocabularies payload.
func DecodeVocabulary(data json.RawMessage) (*VocabularyPayload, error) {
	return decodePayload[VocabularyPayload](TableVocabularies, data)
}

// DecodeTerm parses and validates a topics or tags payload.
func DecodeTerm(tableName string, data json.RawMessage) (*TermPayload, error) {
	return decodePayload[TermPayload](tableName, data)
}

// DecodeSettings parses and validates a learningSettings payload.
func DecodeSettings(data json.RawMessage) (*SettingsPayload, error) {
	return decodePayload[SettingsPayload](TableLearningSettings, data)
}

// DecodeShare parses and validates a collectionShares payload.
func DecodeShare(data json.RawMessage) (*SharePayload, error) {
	return decodePayload[SharePayload](TableCollectionShares, data)
}

// DecodeProgress parses and validates a topicProgress payload.
func DecodeProgress(data json.RawMessage) (*ProgressPayload, error) {
	return decodePayload[ProgressPayload](TableTopicProgress, data)
}

func decodePayload[T any](tableName string, data json.RawMessage) (*T, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", tableName, err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", tableName, err)
	}
	return &p, nil
}
