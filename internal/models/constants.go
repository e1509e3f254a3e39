package models

const (
	DefaultChunkSize           = 1024
	DefaultChunkOverlap        = 200
	DefaultSimilarityThreshold = 0.7
	DefaultTopK                = 5
	DefaultRerankTopK          = 3
	DefaultHybridAlpha         = 0.7
)

var (
	RelevancePromptTemplate = `Rate how relevant the following document is to the query on a scale from 0.0 to 1.0.
Query: %s
Document:
%s
Answer only with a single decimal number between 0.0 and 1.0 and nothing else.
`

	AnswerPromptTemplate = `Context:
---------------------
%s
---------------------

Based only on the context above and without using prior knowledge, answer the following question:

Question: %s

Answer:`
)
