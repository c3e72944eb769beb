package config

import (
	"time"
)

// Config is the full application configuration. Defaults are loaded from
// Default() via the structs provider and may be overridden by RESOLVD_*
// environment variables.
type Config struct {
	Retrieval RetrievalConfig `koanf:"retrieval" validate:"required"`
	Approval  ApprovalConfig  `koanf:"approval"  validate:"required"`
	Embedder  EmbedderConfig  `koanf:"embedder"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Sparse    SparseConfig    `koanf:"sparse"`
	Reranker  RerankerConfig  `koanf:"reranker"`
	Resolver  ResolverConfig  `koanf:"resolver"`
}

// RetrievalConfig tunes the hybrid retrieval pipeline.
type RetrievalConfig struct {
	// TopN is the per-source candidate budget handed to dense and sparse search.
	TopN int `koanf:"top_n" validate:"min=1" env:"RETRIEVAL_TOP_N"`
	// RRFK is the rank-offset constant in the 1/(k+rank) fusion formula.
	RRFK int `koanf:"rrf_k" validate:"min=1" env:"RETRIEVAL_RRF_K"`
	// FusedLimit bounds the candidate set handed to the reranker.
	FusedLimit int `koanf:"fused_limit" validate:"min=1" env:"RETRIEVAL_FUSED_LIMIT"`
	// FinalTopK bounds the result returned to the workflow.
	FinalTopK int           `koanf:"final_top_k" validate:"min=1" env:"RETRIEVAL_FINAL_TOP_K"`
	Timeout   time.Duration `koanf:"timeout"     validate:"required" env:"RETRIEVAL_TIMEOUT"`
}

// ApprovalWaitPolicy selects what happens when a human decision does not
// arrive before the configured expiry.
type ApprovalWaitPolicy string

const (
	// WaitBlock holds the run until a decision arrives. No expiry applies.
	WaitBlock ApprovalWaitPolicy = "block"
	// WaitAutoApprove treats an expired request as approved.
	WaitAutoApprove ApprovalWaitPolicy = "auto_approve"
	// WaitAutoReject treats an expired request as rejected.
	WaitAutoReject ApprovalWaitPolicy = "auto_reject"
)

// LimitOutcome selects the terminal state when the modify/re-propose loop
// reaches its iteration bound.
type LimitOutcome string

const (
	LimitReject LimitOutcome = "reject"
	LimitError  LimitOutcome = "error"
)

// ApprovalConfig governs the human-in-the-loop stage.
type ApprovalConfig struct {
	MaxIterations int                `koanf:"max_iterations" validate:"min=1"                              env:"APPROVAL_MAX_ITERATIONS"`
	OnLimit       LimitOutcome       `koanf:"on_limit"       validate:"oneof=reject error"                 env:"APPROVAL_ON_LIMIT"`
	Wait          ApprovalWaitPolicy `koanf:"wait"           validate:"oneof=block auto_approve auto_reject" env:"APPROVAL_WAIT"`
	// Expiry only applies to the auto_* wait policies.
	Expiry time.Duration `koanf:"expiry" env:"APPROVAL_EXPIRY"`
}

// EmbedderConfig configures the query embedding provider.
type EmbedderConfig struct {
	Provider  string `koanf:"provider"   env:"EMBEDDER_PROVIDER"`
	Model     string `koanf:"model"      env:"EMBEDDER_MODEL"`
	Dimension int    `koanf:"dimension"  validate:"min=1" env:"EMBEDDER_DIMENSION"`
	CacheSize int    `koanf:"cache_size" env:"EMBEDDER_CACHE_SIZE"`
}

// QdrantConfig configures the dense vector store.
type QdrantConfig struct {
	DSN     string        `koanf:"dsn"     env:"QDRANT_DSN"`
	APIKey  string        `koanf:"api_key" env:"QDRANT_API_KEY"`
	Timeout time.Duration `koanf:"timeout" env:"QDRANT_TIMEOUT"`
}

// SparseConfig configures the lexical index.
type SparseConfig struct {
	// Path is the on-disk index root. Empty selects an in-memory index.
	Path string `koanf:"path" env:"SPARSE_PATH"`
}

// RerankerConfig configures the cross-encoder scoring service.
type RerankerConfig struct {
	Endpoint string        `koanf:"endpoint" env:"RERANKER_ENDPOINT"`
	Timeout  time.Duration `koanf:"timeout"  env:"RERANKER_TIMEOUT"`
}

// ResolverConfig configures the generation collaborator.
type ResolverConfig struct {
	Provider      string        `koanf:"provider"       env:"RESOLVER_PROVIDER"`
	Model         string        `koanf:"model"          env:"RESOLVER_MODEL"`
	Timeout       time.Duration `koanf:"timeout"        env:"RESOLVER_TIMEOUT"`
	RetryAttempts int           `koanf:"retry_attempts" env:"RESOLVER_RETRY_ATTEMPTS"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"  env:"RESOLVER_RETRY_BACKOFF"`
}

// Default returns the built-in configuration used when no override is supplied.
func Default() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			TopN:       200,
			RRFK:       60,
			FusedLimit: 20,
			FinalTopK:  5,
			Timeout:    30 * time.Second,
		},
		Approval: ApprovalConfig{
			MaxIterations: 3,
			OnLimit:       LimitReject,
			Wait:          WaitBlock,
		},
		Embedder: EmbedderConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			CacheSize: 2048,
		},
		Qdrant: QdrantConfig{
			DSN:     "http://localhost:6333",
			Timeout: 10 * time.Second,
		},
		Reranker: RerankerConfig{
			Timeout: 10 * time.Second,
		},
		Resolver: ResolverConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  500 * time.Millisecond,
		},
	}
}
