// Package forkfolio is a recipe ingestion and semantic retrieval service.
//
// Free-text recipes are cleaned up and extracted into structured records
// by an LLM, checked against existing recipes with an embedding-distance
// deduplication gate, and stored in NATS JetStream KV buckets alongside
// their embedding vectors. Semantic search runs a nearest-neighbor query
// over stored embeddings and reorders the candidates with an LLM-backed
// reranker that blends relevance and embedding scores.
//
// The main packages are:
//   - dedupe: three-zone duplicate detection over cosine distance
//   - rerank: candidate reranking, score blending and fallback policy
//   - pkg/cache: bounded expiring cache memoizing provider calls
//   - pkg/embedding: embedding providers (OpenAI-compatible HTTP, BM25)
//   - llm: structured-output judgment provider
//   - vectorstore, recipestore: KV-backed persistence
//   - ingest: the recipe processing pipeline
//   - service: HTTP API and lifecycle management
package forkfolio
