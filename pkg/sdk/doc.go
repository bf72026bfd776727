// Package evidex provides an embedded Go client for the evidex policy
// answering pipeline, backed by Redis for checkpoints and plan audit.
//
// The client wires the full pipeline in-process: query analysis, engine
// planning, bounded-parallel retrieval, evidence fusion and synthesis.
// It talks to the same external services the server does (an
// OpenAI-compatible LLM API, a rerank API and per-engine corpus search
// endpoints); only the HTTP transport layer is skipped.
//
//	client, _ := evidex.New(ctx,
//	    evidex.WithRedis("localhost:6379", ""),
//	    evidex.WithLLM(os.Getenv("LLM_API_KEY"), ""),
//	    evidex.WithReranker("http://localhost:7500/v1/rerank", "", ""),
//	    evidex.WithEngines(
//	        evidex.EngineSpec{ID: "gos", CorpusID: "corpora/ap-gos", Endpoint: searchURL},
//	        evidex.EngineSpec{ID: "legal", CorpusID: "corpora/ap-legal", Endpoint: searchURL},
//	    ),
//	)
//	defer client.Close()
//
//	ans, _ := client.Answer(ctx, evidex.AnswerRequest{
//	    Query: "What is the procedure for teacher transfers?",
//	})
//	fmt.Println(ans.Text)
package evidex
