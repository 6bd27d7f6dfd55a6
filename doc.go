// Package docex extracts structured field values from large documents by
// chunking the text, running an LLM-backed field extractor over the chunks
// concurrently, and merging the per-chunk answers with a position-weighted
// confidence heuristic.
//
// # Problem Statement
//
// A single LLM call cannot digest a hundred-page filing, and naive
// truncation silently drops the tables where the interesting numbers live.
// Splitting the document and asking per chunk creates the opposite problem:
// every chunk returns its own opinion of "total_revenue" and someone has to
// decide which one to keep. docex handles both ends:
//
//   - Chunking: overlapping, size-bounded chunks that snap to paragraph and
//     sentence boundaries, with a hard cap that keeps both the head and the
//     tail of oversized documents.
//   - Merging: per-occurrence confidence that rewards early chunks (summary
//     data is front-loaded), penalizes null and empty values, concatenates
//     and dedupes list-valued fields, and never lets a null beat a concrete
//     value.
//   - Orchestration: one isolated unit of work per field, with bounded
//     concurrency, per-field timeouts, capped exponential-backoff retries,
//     and a vector-retrieval path that transparently falls back to direct
//     extraction. Partial success is preserved: fields that completed are
//     returned even when siblings failed.
//
// # Basic Usage
//
// Collaborators are injected: any Extractor (an LLM client, here the
// bundled genai implementation) and optionally a Searcher over a vector
// index.
//
//	extractor, _ := docex.NewGenaiExtractor(client, nil,
//	    docex.WithRateLimit(2),
//	    docex.WithExtractorRetry(3, time.Second),
//	)
//	orc, _ := docex.NewOrchestrator(extractor,
//	    docex.WithStore(store),
//	    docex.WithSearcher(index),
//	)
//
//	doc := docex.NewDocument("", reportText)
//	taskID, _ := orc.Start(ctx, doc, docex.Schema{
//	    {Name: "company_name", Description: "legal name of the filer"},
//	    {Name: "total_revenue", Description: "revenue for the period"},
//	})
//
// Extraction is asynchronous. Poll Status until the task is terminal, then
// read Result; a failed task still carries every field that completed.
//
//	snap, _ := orc.Status(ctx, taskID)
//	if snap.Status.Terminal() {
//	    values, _ := orc.Result(ctx, taskID)
//	    ...
//	}
//
// Plan and Explain estimate chunk counts, extractor calls, and token usage
// without touching any collaborator.
package docex
