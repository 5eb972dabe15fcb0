package models

// Definition is one sense of a vocabulary item.
type Definition struct {
	Meaning     string  `json:"meaning"`
	Translation *string `json:"translation,omitempty"`
	Example     *string `json:"example,omitempty"`
}

// RelatedWord links a vocabulary item to another word.
type RelatedWord struct {
	WordID       string `json:"wordId"`
	Word         string `json:"word"`
	Relationship string `json:"relationship"`
}

// Vocabulary is a single learnable item belonging to exactly one collection.
//
// Definitions, ExampleSentences, Topics, Tags and RelatedWords are stored
// denormalized as JSON columns; topics and tags additionally exist as
// independent taxonomy rows for global dedup.
type Vocabulary struct {
	ID               string
	Word             string
	WordType         string
	Level            string
	IPA              string
	AudioURL         *string
	Concept          *string
	Language         string
	CollectionID     string
	Definitions      []Definition
	ExampleSentences []string
	Topics           []string
	Tags             []string
	RelatedWords     []RelatedWord

	SyncEnvelope
}
